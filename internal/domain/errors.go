package domain

import "errors"

var (
	ErrUnknownPlan   = errors.New("unknown plan")
	ErrQueueFull     = errors.New("queue full")
	ErrAlreadyQueued = errors.New("user already has a task queued or running")
	ErrInvalidInput  = errors.New("invalid input")
	ErrHostNotListed = errors.New("url host is not whitelisted")

	ErrPromoExists      = errors.New("promo code already exists")
	ErrPromoNotFound    = errors.New("promo code not found")
	ErrPromoExpired     = errors.New("promo code expired")
	ErrPromoExhausted   = errors.New("promo code used up")
	ErrPromoAlreadyUsed = errors.New("promo code already used by this user")
)
