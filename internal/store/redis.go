// Package store implements the Redis-backed state store: ranked runs,
// document text, code-frequency summaries, run metadata, and the
// classification-code vocabulary, all bounded by configurable TTLs.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jl1nie/rrfusion/internal/model"
)

// Store provides typed operations over Redis for runs and doc caches.
// Redis provides the atomicity; Store holds no locks of its own.
type Store struct {
	rdb        *redis.Client
	snapshot   string
	dataTTL    time.Duration
	snippetTTL time.Duration
	vocab      *Vocab
}

// Options configures a Store.
type Options struct {
	Snapshot   string
	DataTTL    time.Duration
	SnippetTTL time.Duration
}

// New creates a Store over an existing Redis client.
func New(rdb *redis.Client, opts Options) *Store {
	s := &Store{
		rdb:        rdb,
		snapshot:   opts.Snapshot,
		dataTTL:    opts.DataTTL,
		snippetTTL: opts.SnippetTTL,
	}
	s.vocab = newVocab(s)
	return s
}

// Open connects to Redis at the given URL and returns a Store.
func Open(url string, opts Options) (*Store, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return New(redis.NewClient(redisOpts), opts), nil
}

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Doc hash keys for encoded code lists.
const (
	hashIPCCodes = "ipc_codes"
	hashCPCCodes = "cpc_codes"
	hashFICodes  = "fi_codes"
	hashFINorm   = "fi_norm"
	hashFTCodes  = "ft_codes"
)

// PutLaneRun atomically replaces the lane ranking, upserts every doc's field
// map, writes the frequency summary, and writes run metadata. The meta's
// LaneKey and FreqKey are filled in before persisting.
//
// On mid-pipeline failure partial state is permitted; readers tolerate
// missing doc records.
func (s *Store) PutLaneRun(ctx context.Context, runID, lane, queryHash string, docs []model.Document, meta *model.RunMeta, freq model.CodeFreqs) error {
	laneKey := s.LaneRankingKey(queryHash, lane)

	encoded, err := s.encodeDocCodes(ctx, docs)
	if err != nil {
		return err
	}

	meta.RunID = runID
	meta.RunType = model.RunTypeLane
	meta.Lane = model.Lane(lane)
	meta.LaneKey = laneKey
	meta.FreqKey = s.freqKey(runID, lane)
	meta.QueryHash = queryHash
	if meta.CreatedAt == 0 {
		meta.CreatedAt = time.Now().Unix()
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal run meta: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, laneKey)
	if len(docs) > 0 {
		members := make([]redis.Z, len(docs))
		for i, doc := range docs {
			members[i] = redis.Z{Score: doc.Score, Member: doc.DocID}
		}
		pipe.ZAdd(ctx, laneKey, members...)
	}
	pipe.Expire(ctx, laneKey, s.dataTTL)

	for i := range docs {
		s.pipelineDoc(ctx, pipe, &docs[i], encoded[docs[i].DocID], false)
	}

	freqPayload := make(map[string]string, len(model.Taxonomies))
	for _, tax := range model.Taxonomies {
		blob, err := json.Marshal(freqFor(freq, tax))
		if err != nil {
			return fmt.Errorf("marshal freq summary: %w", err)
		}
		freqPayload[tax] = string(blob)
	}
	pipe.HSet(ctx, meta.FreqKey, freqPayload)
	pipe.Expire(ctx, meta.FreqKey, s.dataTTL)

	pipe.HSet(ctx, s.runKey(runID), "meta", metaJSON)
	pipe.Expire(ctx, s.runKey(runID), s.dataTTL)

	_, err = pipe.Exec(ctx)
	return err
}

// PutFusionRun stores a pre-sorted fused ranking plus run metadata.
func (s *Store) PutFusionRun(ctx context.Context, runID string, scores []model.ScoredDoc, meta *model.RunMeta) error {
	key := s.FusionRankingKey(runID)

	meta.RunID = runID
	meta.RunType = model.RunTypeFusion
	meta.RRFKey = key
	if meta.CreatedAt == 0 {
		meta.CreatedAt = time.Now().Unix()
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal run meta: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, key)
	if len(scores) > 0 {
		members := make([]redis.Z, len(scores))
		for i, row := range scores {
			members[i] = redis.Z{Score: row.Score, Member: row.DocID}
		}
		pipe.ZAdd(ctx, key, members...)
	}
	pipe.Expire(ctx, key, s.dataTTL)
	pipe.HSet(ctx, s.runKey(runID), "meta", metaJSON)
	pipe.Expire(ctx, s.runKey(runID), s.dataTTL)

	_, err = pipe.Exec(ctx)
	return err
}

// UpsertDocs merges per-field text into existing doc records. Only fields
// present in the incoming payload overwrite; absent fields are left alone.
func (s *Store) UpsertDocs(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	encoded, err := s.encodeDocCodes(ctx, docs)
	if err != nil {
		return err
	}
	pipe := s.rdb.Pipeline()
	for i := range docs {
		s.pipelineDoc(ctx, pipe, &docs[i], encoded[docs[i].DocID], true)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// pipelineDoc queues HSET/EXPIRE for one doc. In sparse mode only non-empty
// fields are written (upsert semantics); otherwise every text field is
// written so stale values from a previous snapshot ingest are replaced.
func (s *Store) pipelineDoc(ctx context.Context, pipe redis.Pipeliner, doc *model.Document, codes encodedCodes, sparse bool) {
	key := s.docKey(doc.DocID)
	payload := make(map[string]any, len(model.AllTextFields)+5)
	for _, field := range model.AllTextFields {
		value := doc.TextField(field)
		if sparse && value == "" {
			continue
		}
		payload[field] = value
	}
	for hashKey, ids := range map[string][]int64{
		hashIPCCodes: codes.ipc,
		hashCPCCodes: codes.cpc,
		hashFICodes:  codes.fi,
		hashFINorm:   codes.fiNorm,
		hashFTCodes:  codes.ft,
	} {
		if sparse && len(ids) == 0 {
			continue
		}
		blob, _ := json.Marshal(ids)
		payload[hashKey] = string(blob)
	}
	if len(payload) > 0 {
		pipe.HSet(ctx, key, payload)
	}
	pipe.Expire(ctx, key, s.snippetTTL)
}

// GetRunMeta returns the run metadata, or nil when the run is unknown or
// expired.
func (s *Store) GetRunMeta(ctx context.Context, runID string) (*model.RunMeta, error) {
	raw, err := s.rdb.HGet(ctx, s.runKey(runID), "meta").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta model.RunMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("decode run meta %s: %w", runID, err)
	}
	return &meta, nil
}

// SetRunMeta overwrites the meta blob, refreshing its TTL.
func (s *Store) SetRunMeta(ctx context.Context, runID string, meta *model.RunMeta) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal run meta: %w", err)
	}
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, s.runKey(runID), "meta", metaJSON)
	pipe.Expire(ctx, s.runKey(runID), s.dataTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// GetDocs returns records for the ids that exist, silently skipping misses.
// Classification codes are decoded back from their vocabulary-id encoding.
func (s *Store) GetDocs(ctx context.Context, docIDs []string) (map[string]*model.Document, error) {
	if len(docIDs) == 0 {
		return map[string]*model.Document{}, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(docIDs))
	for i, id := range docIDs {
		cmds[i] = pipe.HGetAll(ctx, s.docKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	docs := make(map[string]*model.Document, len(docIDs))
	var pendingIDs []int64
	type codeSlot struct {
		doc  *model.Document
		hash string
		ids  []int64
	}
	var slots []codeSlot

	for i, id := range docIDs {
		payload, err := cmds[i].Result()
		if err != nil || len(payload) == 0 {
			continue
		}
		doc := &model.Document{DocID: id}
		for _, field := range model.AllTextFields {
			if v, ok := payload[field]; ok {
				doc.SetTextField(field, v)
			}
		}
		for _, hashKey := range []string{hashIPCCodes, hashCPCCodes, hashFICodes, hashFINorm, hashFTCodes} {
			raw, ok := payload[hashKey]
			if !ok || raw == "" {
				continue
			}
			var ids []int64
			if err := json.Unmarshal([]byte(raw), &ids); err != nil {
				continue
			}
			slots = append(slots, codeSlot{doc: doc, hash: hashKey, ids: ids})
			pendingIDs = append(pendingIDs, ids...)
		}
		docs[id] = doc
	}

	codeByID, err := s.vocab.Decode(ctx, pendingIDs)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		codes := make([]string, 0, len(slot.ids))
		for _, cid := range slot.ids {
			if code, ok := codeByID[cid]; ok {
				codes = append(codes, code)
			}
		}
		switch slot.hash {
		case hashIPCCodes:
			slot.doc.IPCCodes = codes
		case hashCPCCodes:
			slot.doc.CPCCodes = codes
		case hashFICodes:
			slot.doc.FICodes = codes
		case hashFINorm:
			slot.doc.FINorm = codes
		case hashFTCodes:
			slot.doc.FTCodes = codes
		}
	}
	for _, doc := range docs {
		doc.DeriveFINorm()
	}
	return docs, nil
}

// RankingSlice returns ordered (doc_id, score) rows from a sorted set.
// stop = -1 reads to the end. desc returns best-first.
func (s *Store) RankingSlice(ctx context.Context, key string, start, stop int64, desc bool) ([]model.ScoredDoc, error) {
	var rows []redis.Z
	var err error
	if desc {
		rows, err = s.rdb.ZRevRangeWithScores(ctx, key, start, stop).Result()
	} else {
		rows, err = s.rdb.ZRangeWithScores(ctx, key, start, stop).Result()
	}
	if err != nil {
		return nil, err
	}
	out := make([]model.ScoredDoc, len(rows))
	for i, z := range rows {
		member, _ := z.Member.(string)
		out[i] = model.ScoredDoc{DocID: member, Score: z.Score}
	}
	return out, nil
}

// RankingSize returns the cardinality of a sorted set.
func (s *Store) RankingSize(ctx context.Context, key string) (int64, error) {
	return s.rdb.ZCard(ctx, key).Result()
}

// GetFreqSummary reads a lane run's stored code-frequency summary.
func (s *Store) GetFreqSummary(ctx context.Context, freqKey string) (model.CodeFreqs, error) {
	payload, err := s.rdb.HGetAll(ctx, freqKey).Result()
	if err != nil {
		return nil, err
	}
	freqs := make(model.CodeFreqs, len(payload))
	for tax, raw := range payload {
		var counts map[string]int
		if err := json.Unmarshal([]byte(raw), &counts); err != nil {
			continue
		}
		freqs[tax] = counts
	}
	return freqs, nil
}

// encodedCodes holds one doc's code lists as vocabulary ids.
type encodedCodes struct {
	ipc, cpc, fi, fiNorm, ft []int64
}

// encodeDocCodes derives FI subgroups and encodes every code list across the
// batch with a single vocabulary round trip.
func (s *Store) encodeDocCodes(ctx context.Context, docs []model.Document) (map[string]encodedCodes, error) {
	var all []string
	for i := range docs {
		docs[i].DeriveFINorm()
		all = append(all, docs[i].IPCCodes...)
		all = append(all, docs[i].CPCCodes...)
		all = append(all, docs[i].FICodes...)
		all = append(all, docs[i].FINorm...)
		all = append(all, docs[i].FTCodes...)
	}
	idByCode, err := s.vocab.Encode(ctx, all)
	if err != nil {
		return nil, err
	}
	lookup := func(codes []string) []int64 {
		if len(codes) == 0 {
			return nil
		}
		ids := make([]int64, 0, len(codes))
		for _, code := range codes {
			if id, ok := idByCode[code]; ok {
				ids = append(ids, id)
			}
		}
		return ids
	}
	out := make(map[string]encodedCodes, len(docs))
	for i := range docs {
		out[docs[i].DocID] = encodedCodes{
			ipc:    lookup(docs[i].IPCCodes),
			cpc:    lookup(docs[i].CPCCodes),
			fi:     lookup(docs[i].FICodes),
			fiNorm: lookup(docs[i].FINorm),
			ft:     lookup(docs[i].FTCodes),
		}
	}
	return out, nil
}

func freqFor(freq model.CodeFreqs, tax string) map[string]int {
	if freq == nil {
		return map[string]int{}
	}
	if counts, ok := freq[tax]; ok && counts != nil {
		return counts
	}
	return map[string]int{}
}
