package commission

import "errors"

var (
	// ErrNilState indicates the engine was used before SetState.
	ErrNilState = errors.New("commission engine: state not configured")
	// ErrNotOwner rejects administrative calls from non-owner accounts.
	ErrNotOwner = errors.New("commission engine: caller is not the owner")
	// ErrInvalidContent rejects registrations with a zero price or creator.
	ErrInvalidContent = errors.New("commission engine: price and creator required")
	// ErrContentNotFound indicates the content id is not registered.
	ErrContentNotFound = errors.New("commission engine: content not found")
	// ErrPaymentMismatch rejects payments that do not equal the content price
	// exactly.
	ErrPaymentMismatch = errors.New("commission engine: payment must equal content price")
	// ErrInsufficientFunds indicates the subscriber cannot cover the payment.
	ErrInsufficientFunds = errors.New("commission engine: insufficient balance")
	// ErrAlreadySubscribed rejects re-subscription while an unexpired
	// subscription is active.
	ErrAlreadySubscribed = errors.New("commission engine: active subscription exists")
	// ErrSubscriptionNotFound indicates no subscription exists for the pair.
	ErrSubscriptionNotFound = errors.New("commission engine: subscription not found")
	// ErrInvalidUser rejects the zero address as a migration subject.
	ErrInvalidUser = errors.New("commission engine: user address required")
	// ErrSelfReferral forbids naming oneself as referrer.
	ErrSelfReferral = errors.New("commission engine: self referral forbidden")
	// ErrInvalidReferrer rejects the zero address as a referral edge target.
	ErrInvalidReferrer = errors.New("commission engine: referrer address required")
	// ErrReferrerAlreadySet enforces first-write-wins referral edges.
	ErrReferrerAlreadySet = errors.New("commission engine: referrer already set")
	// ErrReferralCycle rejects edges that would make a user their own
	// ancestor.
	ErrReferralCycle = errors.New("commission engine: referral chain would form a cycle")
	// ErrNoBalance indicates a withdrawal with nothing pending.
	ErrNoBalance = errors.New("commission engine: no pending commission")
)
