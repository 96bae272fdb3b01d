package intercambio

import (
	"time"

	"github.com/truekea/truekea-api/internal/models"
)

// Состояния обмена, общие для сторон и агрегата
const (
	EstadoPendiente = "pendiente"
	EstadoAceptado  = "aceptado"
	EstadoCancelado = "cancelado"
)

// ventanaConfirmacion — окно, за которое вторая сторона должна подтвердить
// обмен после первого подтверждения
const ventanaConfirmacion = 15 * time.Minute

// EstadoAgregado вычисляет общий статус обмена из статусов двух сторон:
// cancelado — если хотя бы одна сторона отменила;
// aceptado — если обе стороны подтвердили;
// иначе pendiente.
func EstadoAgregado(estadoSolicitante, estadoReceptor string) string {
	if estadoSolicitante == EstadoCancelado || estadoReceptor == EstadoCancelado {
		return EstadoCancelado
	}
	if estadoSolicitante == EstadoAceptado && estadoReceptor == EstadoAceptado {
		return EstadoAceptado
	}
	return EstadoPendiente
}

// UsuarioPenalizable возвращает ID участника, который не подтвердил обмен
// в срок. Штраф применяется только когда дедлайн истек, обмен все еще
// pendiente и ровно одна сторона подтвердила. После выхода агрегата из
// pendiente условие больше никогда не выполняется.
func UsuarioPenalizable(i *models.Intercambio, ahora time.Time) (int64, bool) {
	if i.Estado != EstadoPendiente || i.FechaLimiteConfirmacion == nil {
		return 0, false
	}
	if ahora.Before(*i.FechaLimiteConfirmacion) {
		return 0, false
	}

	confirmoSolicitante := i.EstadoSolicitante == EstadoAceptado
	confirmoReceptor := i.EstadoReceptor == EstadoAceptado
	if confirmoSolicitante == confirmoReceptor {
		// Обе стороны подтвердили или ни одна — штрафовать некого
		return 0, false
	}

	if confirmoSolicitante {
		return i.IDUsuarioRecibe, true
	}
	return i.IDUsuarioOfrece, true
}
