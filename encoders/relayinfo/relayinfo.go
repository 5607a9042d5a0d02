// Package relayinfo implements the NIP-11 relay information document: the
// JSON object served at GET / when a client sends Accept:
// application/nostr+json, describing the relay's identity, supported
// NIPs, and the limitation values it enforces.
package relayinfo

import "sort"

// N is a supported NIP number.
type N int

// Nips supported by this relay; extend this list as new NIPs are wired
// into the pipeline.
const (
	BasicProtocol                  N = 1
	Authentication                 N = 42
	EventDeletion                  N = 9
	EventTreatment                 N = 16
	GenericTagQueries              N = 12
	RelayInformationDocument       N = 11
	ProtectedEvents                N = 70
	CommandResults                 N = 20
	ParameterizedReplaceableEvents N = 33
	ProofOfWork                    N = 13
	Counting                       N = 45
	Search                         N = 50
)

// NipList is a sortable collection of supported NIP numbers.
type NipList []N

func (l NipList) Len() int           { return len(l) }
func (l NipList) Less(i, j int) bool { return l[i] < l[j] }
func (l NipList) Swap(i, j int)      { l[i], l[j] = l[j], l[i] }

// GetList returns ns as a NipList ready for sorting.
func GetList(ns ...N) NipList { return NipList(ns) }

// Limits mirrors the relay_info.limitation configuration surface (NIP-11
// §"limitation").
type Limits struct {
	MaxMessageLength int    `json:"max_message_length,omitempty"`
	MaxSubscriptions int    `json:"max_subscriptions,omitempty"`
	MaxSubIdLength   int    `json:"max_subid_length,omitempty"`
	MaxLimit         int    `json:"max_limit,omitempty"`
	MaxContentLength int    `json:"max_content_length,omitempty"`
	MinPowDifficulty int    `json:"min_pow_difficulty,omitempty"`
	AuthRequired     bool   `json:"auth_required"`
	PaymentRequired  bool   `json:"payment_required"`
	RestrictedWrites bool   `json:"restricted_writes"`
	CreatedAtLowerLimit int64 `json:"created_at_lower_limit,omitempty"`
	CreatedAtUpperLimit int64 `json:"created_at_upper_limit,omitempty"`
}

// T is the full relay information document.
type T struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Pubkey      string    `json:"pubkey,omitempty"`
	Contact     string    `json:"contact,omitempty"`
	Nips        NipList   `json:"supported_nips"`
	Software    string    `json:"software"`
	Version     string    `json:"version"`
	Limitation  Limits    `json:"limitation"`
	Icon        string    `json:"icon,omitempty"`
}

// Sort sorts t's Nips list in place, the order NIP-11 documents
// conventionally list supported NIPs in.
func (t *T) Sort() { sort.Sort(t.Nips) }
