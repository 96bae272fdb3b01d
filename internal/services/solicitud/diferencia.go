package solicitud

import (
	"errors"
	"strconv"
)

// parseDiferencia разбирает предложенную доплату из JSON.
// Клиенты присылают число, строку с числом, пустую строку или null;
// пустые значения означают "доплата не предложена".
func parseDiferencia(valor any) (*float64, error) {
	switch v := valor.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case string:
		if v == "" || v == "null" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.New("diferencia_propuesta inválida")
		}
		return &parsed, nil
	default:
		return nil, errors.New("diferencia_propuesta inválida")
	}
}
