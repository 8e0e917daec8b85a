package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aretw0/barter/pkg/domain"
	"github.com/mitchellh/mapstructure"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.Store and ports.Transactor using Redis.
// Conditional writes and transfers run as Lua scripts, so each one is atomic
// across every replica sharing the instance.
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix for all records.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "barter:",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) itemKey(id string) string {
	return s.prefix + "item:" + id
}

func (s *Store) itemIndexKey() string {
	return s.prefix + "items"
}

func (s *Store) retiredKey(id string) string {
	return s.prefix + "retired:" + id
}

func (s *Store) proposalKey(id string) string {
	return s.prefix + "proposal:" + id
}

func (s *Store) accountIndexKey(account string) string {
	return s.prefix + "account:" + account + ":proposals"
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetItem returns the ownership pair of an item.
func (s *Store) GetItem(ctx context.Context, id string) (domain.Ownership, error) {
	vals, err := s.client.HMGet(ctx, s.itemKey(id), "owner", "version").Result()
	if err != nil {
		return domain.Ownership{}, fmt.Errorf("failed to get item from redis: %w", err)
	}
	if vals[0] == nil || vals[1] == nil {
		return domain.Ownership{}, domain.ErrItemNotFound
	}
	owner, _ := vals[0].(string)
	raw, _ := vals[1].(string)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.Ownership{}, fmt.Errorf("corrupt version for item %s: %w", id, err)
	}
	return domain.Ownership{Owner: owner, Version: version}, nil
}

// SetOwnerIf performs a version-conditioned owner write.
func (s *Store) SetOwnerIf(ctx context.Context, id, newOwner string, expectedVersion int64) (int64, error) {
	res, err := setOwnerIf.Run(ctx, s.client, []string{s.itemKey(id)}, newOwner, expectedVersion).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to set owner in redis: %w", err)
	}
	if res < 0 {
		return 0, codeError(res)
	}
	return res, nil
}

// CreateItem stores a new item. A previously deleted ID resumes above its last version.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) error {
	args := []any{item.ID, domain.InitialOwnerVersion}
	for _, kv := range [][2]string{
		{"id", item.ID},
		{"title", item.Title},
		{"platform", item.Platform},
		{"condition", item.Condition},
		{"year", strconv.Itoa(item.Year)},
		{"publisher", item.Publisher},
		{"owner", item.Owner},
	} {
		args = append(args, kv[0], kv[1])
	}

	keys := []string{s.itemKey(item.ID), s.itemIndexKey(), s.retiredKey(item.ID)}
	res, err := createItem.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return fmt.Errorf("failed to create item in redis: %w", err)
	}
	if res < 0 {
		return codeError(res)
	}
	item.OwnerVersion = res
	return nil
}

// GetItemRecord returns the full item.
func (s *Store) GetItemRecord(ctx context.Context, id string) (*domain.Item, error) {
	fields, err := s.client.HGetAll(ctx, s.itemKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get item from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrItemNotFound
	}
	return decodeItem(fields)
}

// ListItems loads every indexed item and filters it in process.
func (s *Store) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	ids, err := s.client.SMembers(ctx, s.itemIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*backend.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.itemKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to load items: %w", err)
		}
	}

	items := make([]domain.Item, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue // Deleted between SMEMBERS and HGETALL
		}
		item, err := decodeItem(fields)
		if err != nil {
			return nil, err
		}
		if filter.Match(*item) {
			items = append(items, *item)
		}
	}
	slices.SortFunc(items, func(a, b domain.Item) int { return cmp.Compare(a.ID, b.ID) })
	return items, nil
}

// PatchItem writes the set attributes in one script execution.
func (s *Store) PatchItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	var args []any
	if patch.Title != nil {
		args = append(args, "title", *patch.Title)
	}
	if patch.Platform != nil {
		args = append(args, "platform", *patch.Platform)
	}
	if patch.Condition != nil {
		args = append(args, "condition", *patch.Condition)
	}
	if patch.Year != nil {
		args = append(args, "year", strconv.Itoa(*patch.Year))
	}
	if patch.Publisher != nil {
		args = append(args, "publisher", *patch.Publisher)
	}
	if len(args) > 0 {
		res, err := patchItem.Run(ctx, s.client, []string{s.itemKey(id)}, args...).Int64()
		if err != nil {
			return nil, fmt.Errorf("failed to patch item in redis: %w", err)
		}
		if res < 0 {
			return nil, codeError(res)
		}
	}
	return s.GetItemRecord(ctx, id)
}

// DeleteItem removes an item and its index entry, keeping its last version.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	keys := []string{s.itemKey(id), s.itemIndexKey(), s.retiredKey(id)}
	res, err := deleteItem.Run(ctx, s.client, keys, id).Int64()
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if res < 0 {
		return codeError(res)
	}
	return nil
}

// GetProposal loads a proposal.
func (s *Store) GetProposal(ctx context.Context, id string) (*domain.Proposal, error) {
	fields, err := s.client.HGetAll(ctx, s.proposalKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrProposalNotFound
	}
	return decodeProposal(fields)
}

// SetStatusIf performs a status-conditioned proposal write.
func (s *Store) SetStatusIf(ctx context.Context, id string, next, expected domain.Status, at time.Time) error {
	res, err := setStatusIf.Run(ctx, s.client, []string{s.proposalKey(id)},
		string(next), string(expected), toMillis(at)).Int64()
	if err != nil {
		return fmt.Errorf("failed to set status in redis: %w", err)
	}
	if res < 0 {
		return codeError(res)
	}
	return nil
}

// InsertProposal persists the proposal and indexes it for both parties.
func (s *Store) InsertProposal(ctx context.Context, p *domain.Proposal) (string, error) {
	offered, err := json.Marshal(p.OfferedItems)
	if err != nil {
		return "", fmt.Errorf("failed to marshal offered items: %w", err)
	}
	requested, err := json.Marshal(p.RequestedItems)
	if err != nil {
		return "", fmt.Errorf("failed to marshal requested items: %w", err)
	}

	score := float64(toMillis(p.CreatedAt))
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.proposalKey(p.ID), map[string]any{
		"id":           p.ID,
		"initiator":    p.Initiator,
		"counterparty": p.Counterparty,
		"offered":      string(offered),
		"requested":    string(requested),
		"status":       string(p.Status),
		"note":         p.Note,
		"created_at":   toMillis(p.CreatedAt),
		"updated_at":   toMillis(p.UpdatedAt),
	})
	pipe.ZAdd(ctx, s.accountIndexKey(p.Initiator), backend.Z{Score: score, Member: p.ID})
	pipe.ZAdd(ctx, s.accountIndexKey(p.Counterparty), backend.Z{Score: score, Member: p.ID})

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to save proposal to redis: %w", err)
	}
	return p.ID, nil
}

// ListProposals returns proposals involving account, newest first.
func (s *Store) ListProposals(ctx context.Context, account string) ([]domain.Proposal, error) {
	ids, err := s.client.ZRevRange(ctx, s.accountIndexKey(account), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}

	list := make([]domain.Proposal, 0, len(ids))
	for _, id := range ids {
		p, err := s.GetProposal(ctx, id)
		if errors.Is(err, domain.ErrProposalNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, nil
}

// CommitTransfer applies the whole plan in one script execution.
func (s *Store) CommitTransfer(ctx context.Context, plan domain.TransferPlan) error {
	keys := make([]string, 0, len(plan.Writes)+1)
	args := make([]any, 0, 2*len(plan.Writes)+4)
	args = append(args, len(plan.Writes))
	for _, w := range plan.Writes {
		keys = append(keys, s.itemKey(w.ItemID))
		args = append(args, w.To, w.ExpectedVersion)
	}
	keys = append(keys, s.proposalKey(plan.Settle.ProposalID))
	args = append(args, string(plan.Settle.To), string(plan.Settle.From), toMillis(plan.Settle.At))

	res, err := commitTransfer.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return fmt.Errorf("failed to commit transfer in redis: %w", err)
	}
	if res < 0 {
		return codeError(res)
	}
	return nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func codeError(code int64) error {
	switch code {
	case codeItemNotFound:
		return domain.ErrItemNotFound
	case codeVersionMismatch:
		return domain.ErrVersionMismatch
	case codeProposalNotFound:
		return domain.ErrProposalNotFound
	case codeStatusMismatch:
		return domain.ErrStatusMismatch
	case codeItemExists:
		return domain.ErrItemExists
	}
	return fmt.Errorf("unexpected script result %d", code)
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// itemHash mirrors the redis hash layout of an item.
type itemHash struct {
	ID        string `mapstructure:"id"`
	Title     string `mapstructure:"title"`
	Platform  string `mapstructure:"platform"`
	Condition string `mapstructure:"condition"`
	Year      int    `mapstructure:"year"`
	Publisher string `mapstructure:"publisher"`
	Owner     string `mapstructure:"owner"`
	Version   int64  `mapstructure:"version"`
}

func decodeItem(fields map[string]string) (*domain.Item, error) {
	var h itemHash
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &h,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(fields); err != nil {
		return nil, fmt.Errorf("corrupt item %s: %w", fields["id"], err)
	}
	if _, ok := fields["version"]; !ok {
		return nil, fmt.Errorf("corrupt item %s: missing version", h.ID)
	}
	return &domain.Item{
		ID:           h.ID,
		Title:        h.Title,
		Platform:     h.Platform,
		Condition:    h.Condition,
		Year:         h.Year,
		Publisher:    h.Publisher,
		Owner:        h.Owner,
		OwnerVersion: h.Version,
	}, nil
}

func decodeProposal(fields map[string]string) (*domain.Proposal, error) {
	p := &domain.Proposal{
		ID:           fields["id"],
		Initiator:    fields["initiator"],
		Counterparty: fields["counterparty"],
		Status:       domain.Status(fields["status"]),
		Note:         fields["note"],
	}
	if err := json.Unmarshal([]byte(fields["offered"]), &p.OfferedItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal offered items: %w", err)
	}
	if err := json.Unmarshal([]byte(fields["requested"]), &p.RequestedItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal requested items: %w", err)
	}
	var err error
	if p.CreatedAt, err = fromMillis(fields["created_at"]); err != nil {
		return nil, fmt.Errorf("corrupt created_at for proposal %s: %w", p.ID, err)
	}
	if p.UpdatedAt, err = fromMillis(fields["updated_at"]); err != nil {
		return nil, fmt.Errorf("corrupt updated_at for proposal %s: %w", p.ID, err)
	}
	return p, nil
}
