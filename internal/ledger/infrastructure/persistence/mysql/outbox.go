package mysql

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/wyfcoding/investledger/internal/ledger/domain"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
)

// managedOutboxRepo MySQL 下经 outbox.Manager 写入 sys_outbox_messages，
// 与业务更新共用同一个事务句柄
type managedOutboxRepo struct{ s *Store }

func (r managedOutboxRepo) Append(ctx context.Context, msg *domain.OutboxMessage) error {
	if err := r.s.outbox.PublishInTx(r.s.conn(ctx), msg.Topic, msg.Key, json.RawMessage(msg.Payload)); err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}

func (r managedOutboxRepo) FetchPending(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	var rows []*outbox.OutboxMessage
	err := r.s.conn(ctx).
		Where("status = ?", outbox.StatusPending).
		Order("id").Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch outbox: %w", err)
	}
	out := make([]*domain.OutboxMessage, len(rows))
	for i, row := range rows {
		out[i] = fromManagedOutbox(row)
	}
	return out, nil
}

func (r managedOutboxRepo) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	rowIDs := make([]uint, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return fmt.Errorf("mark outbox published: bad id %q: %w", id, err)
		}
		rowIDs = append(rowIDs, uint(n))
	}
	err := r.s.conn(ctx).Model(&outbox.OutboxMessage{}).
		Where("id IN ? AND status = ?", rowIDs, outbox.StatusPending).
		Update("status", outbox.StatusSent).Error
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func (r managedOutboxRepo) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.s.conn(ctx).Model(&outbox.OutboxMessage{}).
		Where("status = ?", outbox.StatusPending).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

// fromManagedOutbox 行 ID 作为投递 ID，事件类型从信封中取回
func fromManagedOutbox(row *outbox.OutboxMessage) *domain.OutboxMessage {
	var env struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(row.Payload, &env)
	return &domain.OutboxMessage{
		ID:        strconv.FormatUint(uint64(row.ID), 10),
		Topic:     row.Topic,
		Key:       row.Key,
		EventType: env.Type,
		Payload:   row.Payload,
		CreatedAt: row.CreatedAt,
	}
}
