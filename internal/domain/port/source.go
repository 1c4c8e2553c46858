package port

import "github.com/roadscope/scene-processing-service/internal/domain/entity"

// MessageSource yields log messages in file order and returns io.EOF when exhausted.
type MessageSource interface {
	Next() (*entity.RawMessage, error)
}
