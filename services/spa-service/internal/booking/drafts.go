package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iamacowMooMoo/spaops/libs/cachex"
	"github.com/iamacowMooMoo/spaops/services/spa-service/internal/model"
)

const (
	draftKeyPrefix = "spa:booking:draft:"
	draftTTL       = 15 * time.Minute
)

// Draft holds a booking form mid-flight: the cashier picks a service first,
// then a time, then a therapist and room from the free lists. Each step saves
// back here so the wizard survives page reloads. Drafts expire on their own;
// nothing references them once the booking is created.
type Draft struct {
	DraftID          string     `json:"draft_id"`
	TID              int64      `json:"tid"`
	SID              int64      `json:"sid,omitempty"`
	TherapistEID     int64      `json:"therapist_eid,omitempty"`
	RoomRID          int64      `json:"rid,omitempty"`
	ScheduledStart   *time.Time `json:"scheduled_start,omitempty"`
	ItemDiscount     float64    `json:"item_discount,omitempty"`
	ItemDiscountType string     `json:"item_discount_type,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// DraftStore keeps drafts in Redis under a per-draft key with a fixed TTL.
type DraftStore struct {
	kv *cachex.Client
}

func NewDraftStore(kv *cachex.Client) *DraftStore {
	return &DraftStore{kv: kv}
}

func (d *DraftStore) Create(ctx context.Context, tid int64) (Draft, error) {
	draft := Draft{
		DraftID:   uuid.NewString(),
		TID:       tid,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.put(ctx, draft); err != nil {
		return Draft{}, err
	}
	return draft, nil
}

func (d *DraftStore) Get(ctx context.Context, draftID string) (Draft, error) {
	raw, err := d.kv.Get(ctx, draftKeyPrefix+draftID)
	if errors.Is(err, cachex.ErrMiss) {
		return Draft{}, model.ErrNotFound
	}
	if err != nil {
		return Draft{}, fmt.Errorf("get draft: %w", err)
	}
	var draft Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return draft, nil
}

// Update overwrites the stored draft and resets its TTL, so an actively
// edited draft never expires under the cashier.
func (d *DraftStore) Update(ctx context.Context, draft Draft) error {
	if _, err := d.Get(ctx, draft.DraftID); err != nil {
		return err
	}
	return d.put(ctx, draft)
}

func (d *DraftStore) Delete(ctx context.Context, draftID string) error {
	return d.kv.Delete(ctx, draftKeyPrefix+draftID)
}

func (d *DraftStore) put(ctx context.Context, draft Draft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := d.kv.SetWithTTL(ctx, draftKeyPrefix+draft.DraftID, raw, draftTTL); err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	return nil
}
