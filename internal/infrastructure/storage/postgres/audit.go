package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"foodcoop/internal/core/id"
	"foodcoop/internal/domain/orders"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the summary size above which it is stored compressed.
const DefaultCompressThreshold = 2 * 1024

// AuditEntry is one recorded order transition.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	OrderID           id.ID           `db:"order_id"`
	Transition        string          `db:"transition"`
	FromState         string          `db:"from_state"`
	ToState           string          `db:"to_state"`
	UserID            string          `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

type postingSummary struct {
	SubgroupID string `json:"subgroupId"`
	Amount     string `json:"amount"`
}

type stockSummary struct {
	StockArticleID string `json:"stockArticleId"`
	Delta          int    `json:"delta"`
}

type transitionSummary struct {
	Postings       []postingSummary `json:"postings,omitempty"`
	StockChanges   []stockSummary   `json:"stockChanges,omitempty"`
	Comments       []string         `json:"comments,omitempty"`
	FoodcoopResult *string          `json:"foodcoopResult,omitempty"`
	Lines          int              `json:"lines"`
	SubgroupOrders int              `json:"subgroupOrders"`
}

// AuditService implements orders.TransitionAuditor. Large summaries are
// stored zstd-compressed.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
	}, nil
}

// RecordTransition stores a summary of out in the current transaction.
func (s *AuditService) RecordTransition(ctx context.Context, out *orders.Outcome) error {
	summary := transitionSummary{
		Comments:       out.Comments,
		Lines:          len(out.Order.Lines),
		SubgroupOrders: len(out.Order.SubgroupOrders),
	}
	for _, p := range out.Postings {
		summary.Postings = append(summary.Postings, postingSummary{SubgroupID: p.SubgroupID.String(), Amount: p.Amount.String()})
	}
	for _, c := range out.StockChanges {
		summary.StockChanges = append(summary.StockChanges, stockSummary{StockArticleID: c.StockArticleID.String(), Delta: c.Delta})
	}
	if out.Order.FoodcoopResult != nil {
		r := out.Order.FoodcoopResult.String()
		summary.FoodcoopResult = &r
	}

	changes, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal transition summary: %w", err)
	}

	entry := AuditEntry{
		ID:              id.New(),
		OrderID:         out.Order.ID,
		Transition:      string(out.Transition),
		FromState:       string(out.From),
		ToState:         string(out.To),
		UserID:          out.Actor,
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       out.At.UTC(),
	}
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO order_audit (
			id, order_id, transition, from_state, to_state, user_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, entry.OrderID, entry.Transition, entry.FromState, entry.ToState, entry.UserID,
		[]byte(entry.Changes), entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the recorded transitions of an order, newest first,
// with compressed summaries expanded.
func (s *AuditService) History(ctx context.Context, orderID id.ID, limit int) ([]AuditEntry, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, order_id, transition, from_state, to_state, user_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM order_audit
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			changes []byte
		)
		if err := rows.Scan(
			&e.ID, &e.OrderID, &e.Transition, &e.FromState, &e.ToState, &e.UserID,
			&changes, &e.ChangesCompressed, &e.CompressionAlgo, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Changes = changes

		if e.CompressionAlgo == CompressionZstd && len(e.ChangesCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress changes: %w", err)
			}
			e.Changes = decompressed
			e.ChangesCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
