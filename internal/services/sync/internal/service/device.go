package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/model"
	"github.com/gamma-omg/partyparty/internal/services/sync/internal/store"
)

type BindDeviceRequest struct {
	Token    string
	Platform model.Platform
}

type DeviceBinding struct {
	Device  model.Device
	Outcome Outcome
	// Pruned counts duplicate records for the same token that were deleted.
	Pruned int
}

// BindDevice makes the device record for the push token owned by the signed-in user.
// A record already owned by the user is returned without any write; a record owned by
// someone else is taken over; a missing record is created.
func (b *Binder) BindDevice(ctx context.Context, id model.Identity, r BindDeviceRequest) (DeviceBinding, error) {
	if err := requireIdentity(id); err != nil {
		return DeviceBinding{}, err
	}
	if r.Token == "" {
		return DeviceBinding{}, serr.Validation("push token is required")
	}

	ds := b.stores.Session(id.Token)
	found, err := ds.FindDevices(ctx, store.FindDevicesRequest{Token: r.Token})
	if err != nil {
		return DeviceBinding{}, syncErr(err, "find", store.Devices)
	}

	// The store decides ownership; a cached binding may have been taken over elsewhere.
	if cached, ok := b.cache.Get(ctx, r.Token); ok && !boundTo(found, cached) {
		b.log.Warn("stale device binding in cache",
			"device_id", cached.ID,
			"cached_user_id", cached.UserID)
	}

	var res DeviceBinding
	if len(found) == 0 {
		res.Device, err = ds.CreateDevice(ctx, model.Device{
			UserID:    id.UserID,
			Token:     r.Token,
			Platform:  r.Platform,
			UpdatedAt: b.now().UTC(),
		})
		if err != nil {
			return DeviceBinding{}, syncErr(err, "create", store.Devices)
		}
		res.Outcome = OutcomeCreated
	} else {
		keep, dups := canonicalDevice(found, id.UserID)
		res.Device, res.Outcome = keep, OutcomeUnchanged

		if keep.UserID != id.UserID {
			keep.UserID = id.UserID
			if r.Platform != "" {
				keep.Platform = r.Platform
			}
			keep.UpdatedAt = b.now().UTC()

			res.Device, err = ds.UpdateDevice(ctx, keep)
			if err != nil {
				return DeviceBinding{}, syncErr(err, "update", store.Devices).With("device_id", keep.ID)
			}
			res.Outcome = OutcomeUpdated
		}

		for _, d := range dups {
			if err := ds.DeleteDevice(ctx, d.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return res, syncErr(err, "delete", store.Devices).With("device_id", d.ID)
			}
			res.Pruned++
		}
	}

	b.cache.Set(ctx, res.Device)
	b.log.Info("device bound",
		"user_id", id.UserID,
		"device_id", res.Device.ID,
		"outcome", res.Outcome,
		"pruned", res.Pruned)

	return res, nil
}

// UnbindDevice deletes the device records for the push token that belong to the signed-in
// user. Records owned by other users are left alone.
func (b *Binder) UnbindDevice(ctx context.Context, id model.Identity, token string) (int, error) {
	if err := requireIdentity(id); err != nil {
		return 0, err
	}
	if token == "" {
		return 0, serr.Validation("push token is required")
	}

	b.cache.Delete(ctx, token)

	ds := b.stores.Session(id.Token)
	found, err := ds.FindDevices(ctx, store.FindDevicesRequest{Token: token})
	if err != nil {
		return 0, syncErr(err, "find", store.Devices)
	}

	deleted := 0
	for _, d := range found {
		if d.UserID != id.UserID {
			continue
		}
		if err := ds.DeleteDevice(ctx, d.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return deleted, fmt.Errorf("unbind device: %w", syncErr(err, "delete", store.Devices).With("device_id", d.ID))
		}
		deleted++
	}

	b.log.Info("device unbound", "user_id", id.UserID, "deleted", deleted)
	return deleted, nil
}

// boundTo reports whether found is exactly the cached record with the cached owner.
func boundTo(found []model.Device, cached model.Device) bool {
	return len(found) == 1 && found[0].ID == cached.ID && found[0].UserID == cached.UserID
}

// canonicalDevice picks the record to keep among several with the same token: the first
// one owned by userID, otherwise the most recently updated one.
func canonicalDevice(found []model.Device, userID string) (model.Device, []model.Device) {
	keep := -1
	for i, d := range found {
		if d.UserID == userID {
			keep = i
			break
		}
	}
	if keep < 0 {
		keep = 0
		for i, d := range found {
			if d.UpdatedAt.After(found[keep].UpdatedAt) {
				keep = i
			}
		}
	}

	dups := make([]model.Device, 0, len(found)-1)
	for i, d := range found {
		if i != keep {
			dups = append(dups, d)
		}
	}
	return found[keep], dups
}
