package store

import (
	"situationcord.app/relay/core/db"
)

type Stores struct {
	conn db.DBTX
}

// NewStores binds every store to conn, which may be the pool or a transaction.
func NewStores(conn db.DBTX) *Stores {
	return &Stores{conn: conn}
}

func (s *Stores) Messages() MessageStore {
	return newMessageStore(s.conn)
}

func (s *Stores) Analyses() AnalysisStore {
	return newAnalysisStore(s.conn)
}

func (s *Stores) IgnoredUsers() IgnoredUserStore {
	return newIgnoredUserStore(s.conn)
}

func (s *Stores) PipelineRuns() PipelineRunStore {
	return newPipelineRunStore(s.conn)
}

func (s *Stores) LLMEvals() LLMEvalStore {
	return newLLMEvalStore(s.conn)
}
