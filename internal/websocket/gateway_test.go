package websocket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/truekea/truekea-api/internal/models"
)

func TestValidarMensajeTexto(t *testing.T) {
	contenido := "¿Nos vemos en el parque?"
	require.NoError(t, validarMensaje(models.MensajeTexto, &contenido, nil, nil))

	vacio := ""
	require.Error(t, validarMensaje(models.MensajeTexto, &vacio, nil, nil))
	require.Error(t, validarMensaje(models.MensajeTexto, nil, nil, nil))
}

func TestValidarMensajeUbicacion(t *testing.T) {
	lat, lng := -12.0464, -77.0428
	require.NoError(t, validarMensaje(models.MensajeUbicacion, nil, &lat, &lng))

	require.Error(t, validarMensaje(models.MensajeUbicacion, nil, &lat, nil))
	require.Error(t, validarMensaje(models.MensajeUbicacion, nil, nil, &lng))
	require.Error(t, validarMensaje(models.MensajeUbicacion, nil, nil, nil))
}

func TestValidarMensajeTipoDesconocido(t *testing.T) {
	contenido := "hola"
	require.Error(t, validarMensaje("audio", &contenido, nil, nil))
}
