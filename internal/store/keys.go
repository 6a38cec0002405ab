package store

import "fmt"

// Key layout. Every key is namespaced by the snapshot tag so one Redis
// instance can host multiple corpus generations side by side.
//
//	lane-ranking/{snapshot}/{query_hash}/{lane}   zset (doc_id, score)
//	fusion-ranking/{snapshot}/{run_id}            zset (doc_id, score)
//	doc/{snapshot}/{doc_id}                       hash of text fields + code lists
//	freq/{snapshot}/{run_id}/{lane}               hash taxonomy -> JSON code->count
//	run/{snapshot}/{run_id}                       hash "meta" -> JSON RunMeta
//	code-vocab/{snapshot}/fwd                     hash code -> id
//	code-vocab/{snapshot}/rev                     hash id -> code
//	code-vocab/{snapshot}/seq                     id counter

// LaneRankingKey returns the sorted-set key for a lane run's ranking.
// Repeated searches with the same query hash land on the same key.
func (s *Store) LaneRankingKey(queryHash, lane string) string {
	return fmt.Sprintf("lane-ranking/%s/%s/%s", s.snapshot, queryHash, lane)
}

// FusionRankingKey returns the sorted-set key for a fusion run's ranking.
func (s *Store) FusionRankingKey(runID string) string {
	return fmt.Sprintf("fusion-ranking/%s/%s", s.snapshot, runID)
}

func (s *Store) docKey(docID string) string {
	return fmt.Sprintf("doc/%s/%s", s.snapshot, docID)
}

func (s *Store) freqKey(runID, lane string) string {
	return fmt.Sprintf("freq/%s/%s/%s", s.snapshot, runID, lane)
}

func (s *Store) runKey(runID string) string {
	return fmt.Sprintf("run/%s/%s", s.snapshot, runID)
}

func (s *Store) vocabFwdKey() string {
	return fmt.Sprintf("code-vocab/%s/fwd", s.snapshot)
}

func (s *Store) vocabRevKey() string {
	return fmt.Sprintf("code-vocab/%s/rev", s.snapshot)
}

func (s *Store) vocabSeqKey() string {
	return fmt.Sprintf("code-vocab/%s/seq", s.snapshot)
}
