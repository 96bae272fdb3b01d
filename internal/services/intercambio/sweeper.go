package intercambio

import (
	"context"
	"log"
	"time"

	"github.com/truekea/truekea-api/internal/db"
)

// StartSweeper запускает фоновую проверку дедлайнов подтверждения.
// Проверка на чтении остается основной; фоновая лишь ускоряет реакцию,
// когда участники давно не открывали обмен.
func (s *IntercambioService) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Printf("✅ Фоновая проверка дедлайнов запущена, интервал %s", interval)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.EjecutarBarrido(); err != nil {
					log.Printf("Ошибка фоновой проверки дедлайнов: %v", err)
				}
			}
		}
	}()
}

// EjecutarBarrido обрабатывает все обмены с истекшим дедлайном подтверждения
func (s *IntercambioService) EjecutarBarrido() error {
	ctx, cancel := db.GetContext()
	defer cancel()

	rows, err := db.Pool.Query(ctx, `
        SELECT id_intercambio
        FROM intercambios
        WHERE estado = 'pendiente'
          AND fecha_limite_confirmacion IS NOT NULL
          AND fecha_limite_confirmacion < NOW()
    `)
	if err != nil {
		return err
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			log.Printf("Ошибка сканирования строки: %v", err)
			continue
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		i, err := cargarIntercambio(ctx, id)
		if err != nil {
			log.Printf("Ошибка запроса обмена %d: %v", id, err)
			continue
		}
		if err := s.aplicarBarrido(i); err != nil {
			log.Printf("Ошибка проверки дедлайна обмена %d: %v", id, err)
		}
	}

	return nil
}
