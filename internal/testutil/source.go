package testutil

import (
	"io"

	"github.com/roadscope/scene-processing-service/internal/domain/entity"
)

// SliceSource replays messages in order. Err, when set, is returned instead of io.EOF once
// the messages run out.
type SliceSource struct {
	Messages []*entity.RawMessage
	Err      error
	pos      int
}

func (s *SliceSource) Next() (*entity.RawMessage, error) {
	if s.pos >= len(s.Messages) {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	m := s.Messages[s.pos]
	s.pos++
	return m, nil
}
