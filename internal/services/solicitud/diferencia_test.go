package solicitud

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDiferenciaNumero(t *testing.T) {
	v, err := parseDiferencia(float64(150.50))
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, 150.50, *v)
}

func TestParseDiferenciaCadena(t *testing.T) {
	v, err := parseDiferencia("99.90")
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, 99.90, *v)
}

func TestParseDiferenciaVacios(t *testing.T) {
	// nil, "" и "null" означают отсутствие доплаты
	for _, valor := range []any{nil, "", "null"} {
		v, err := parseDiferencia(valor)
		require.NoError(t, err)
		require.Nil(t, v)
	}
}

func TestParseDiferenciaInvalida(t *testing.T) {
	for _, valor := range []any{"abc", true, []any{1.0}} {
		_, err := parseDiferencia(valor)
		require.Error(t, err)
	}
}

func TestParseDiferenciaNegativa(t *testing.T) {
	// Отрицательная доплата допустима: знак определяет направление
	v, err := parseDiferencia(float64(-25))
	require.NoError(t, err)
	require.NotNil(t, v)
	require.Equal(t, -25.0, *v)
}
