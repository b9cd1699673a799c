package commission

import (
	"socialtree/core/events"
	"socialtree/core/types"
)

const (
	// EventTypeContentRegistered is emitted when the owner registers or
	// overwrites a content entry.
	EventTypeContentRegistered = "commission.content.registered"
	// EventTypeReferrerSet is emitted when a user records their referral edge.
	EventTypeReferrerSet = "commission.referrer.set"
	// EventTypeSubscribed is emitted once per confirmed subscription.
	EventTypeSubscribed = "commission.subscription.confirmed"
	// EventTypeSubscriptionCancelled is emitted when a subscriber cancels.
	EventTypeSubscriptionCancelled = "commission.subscription.cancelled"
	// EventTypeDistributed is emitted once per referral level credited.
	EventTypeDistributed = "commission.distributed"
	// EventTypeWithdrawn is emitted when pending commission is paid out.
	EventTypeWithdrawn = "commission.withdrawn"
	// EventTypeOwnershipTransferred is emitted when the admin account changes.
	EventTypeOwnershipTransferred = "commission.ownership.transferred"
	// EventTypeReferrerMigrated is emitted when the owner rewrites a single
	// referral edge.
	EventTypeReferrerMigrated = "commission.referrer.migrated"
	// EventTypeNetworkMigrated is emitted once per bulk referral migration,
	// after the per-edge events.
	EventTypeNetworkMigrated = "commission.network.migrated"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// ContentRegisteredEvent returns the payload announcing a registry write.
func ContentRegisteredEvent(contentID string, creator string, price string) *types.Event {
	return &types.Event{
		Type: EventTypeContentRegistered,
		Attributes: map[string]string{
			"contentId": contentID,
			"creator":   creator,
			"price":     price,
		},
	}
}

// ReferrerSetEvent returns the payload for a new referral edge.
func ReferrerSetEvent(user string, referrer string) *types.Event {
	return &types.Event{
		Type: EventTypeReferrerSet,
		Attributes: map[string]string{
			"user":     user,
			"referrer": referrer,
		},
	}
}

// SubscribedEvent returns the payload confirming a subscription.
func SubscribedEvent(user string, contentID string, referrer string, amount string, endTime string) *types.Event {
	return &types.Event{
		Type: EventTypeSubscribed,
		Attributes: map[string]string{
			"user":      user,
			"contentId": contentID,
			"referrer":  referrer,
			"amount":    amount,
			"endTime":   endTime,
		},
	}
}

// SubscriptionCancelledEvent returns the payload for a cancellation.
func SubscriptionCancelledEvent(user string, contentID string, cancelTime string) *types.Event {
	return &types.Event{
		Type: EventTypeSubscriptionCancelled,
		Attributes: map[string]string{
			"user":       user,
			"contentId":  contentID,
			"cancelTime": cancelTime,
		},
	}
}

// DistributedEvent returns the payload for one credited referral level.
func DistributedEvent(recipient string, fromUser string, amount string, level string) *types.Event {
	return &types.Event{
		Type: EventTypeDistributed,
		Attributes: map[string]string{
			"recipient": recipient,
			"fromUser":  fromUser,
			"amount":    amount,
			"level":     level,
		},
	}
}

// WithdrawnEvent returns the payload for a completed withdrawal.
func WithdrawnEvent(user string, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeWithdrawn,
		Attributes: map[string]string{
			"user":   user,
			"amount": amount,
		},
	}
}

// ReferrerMigratedEvent returns the payload for an administrative edge
// rewrite. oldReferrer is the zero-value hex string when the user had no edge.
func ReferrerMigratedEvent(user string, oldReferrer string, newReferrer string) *types.Event {
	return &types.Event{
		Type: EventTypeReferrerMigrated,
		Attributes: map[string]string{
			"user":        user,
			"oldReferrer": oldReferrer,
			"newReferrer": newReferrer,
		},
	}
}

// NetworkMigratedEvent returns the summary payload for a bulk migration.
func NetworkMigratedEvent(fromUser string, toReferrer string, migratedCount string) *types.Event {
	return &types.Event{
		Type: EventTypeNetworkMigrated,
		Attributes: map[string]string{
			"fromUser":      fromUser,
			"toReferrer":    toReferrer,
			"migratedCount": migratedCount,
		},
	}
}

// OwnershipTransferredEvent returns the payload for an owner rotation.
func OwnershipTransferredEvent(previousOwner string, newOwner string) *types.Event {
	return &types.Event{
		Type: EventTypeOwnershipTransferred,
		Attributes: map[string]string{
			"previousOwner": previousOwner,
			"newOwner":      newOwner,
		},
	}
}
