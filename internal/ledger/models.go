// Package ledger is the durable store of record: the request log and the
// replay-protected used-proof set (spec §4.F). record_proof's atomic
// insert-or-ignore is the sole source of admission truth; everything else
// in the gateway is observability.
package ledger

import "time"

// RequestEntry is one row of the append-only request log (spec §3 Request
// Log Entry).
type RequestEntry struct {
	ID             string `gorm:"primaryKey;type:uuid"`
	ServiceID      string `gorm:"index:idx_requests_service_id"`
	Endpoint       string
	Payer          string `gorm:"index:idx_requests_payer"`
	CAIP2          string
	AmountBaseUnit string
	UpstreamStatus int
	LatencyMS      int64
	CreatedAt      time.Time `gorm:"index:idx_requests_created_at"`
}

// TableName pins the gorm table name rather than relying on pluralization.
func (RequestEntry) TableName() string { return "requests" }

// UsedProof is one row of the replay-protection table (spec §3 Used-Proof
// Record). ProofKey is the primary key: its uniqueness constraint IS the
// replay check.
type UsedProof struct {
	ProofKey       string `gorm:"primaryKey"`
	Payer          string
	AmountBaseUnit string
	CAIP2          string
	AcceptedAt     time.Time `gorm:"index:idx_used_proofs_accepted_at"`
}

func (UsedProof) TableName() string { return "used_proofs" }
