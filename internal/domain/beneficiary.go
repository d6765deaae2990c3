/**
 * @description
 * This file defines the core domain model for a Beneficiary: a saved payment
 * destination (phone number, smartcard, betting wallet) owned by the biller
 * backend and used to pre-fill payment intents.
 *
 * @notes
 * - The backend owns the record; this service only creates, reads, updates
 *   and deletes it through the directory.
 * - Deleting a beneficiary never retroactively invalidates a pending
 *   transaction already built from it: intents are frozen snapshots.
 */
package domain

import "time"

// Beneficiary represents a saved payment destination for one category.
type Beneficiary struct {
	ID                string    `json:"id"`
	AccountID         string    `json:"account_id"`
	DisplayName       string    `json:"display_name"`
	Destination       string    `json:"destination"`
	ProviderReference string    `json:"provider_reference,omitempty"`
	CategoryCode      string    `json:"category_code"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
