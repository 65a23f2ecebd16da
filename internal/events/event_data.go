package events

import "encoding/json"

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SaleFinalizedData contains data for SaleFinalized events
type SaleFinalizedData struct {
	SaleID string  `json:"sale_id"`
	Total  float64 `json:"total,omitempty"`
}

// EventType returns the event type for SaleFinalizedData
func (d *SaleFinalizedData) EventType() EventType {
	return SaleFinalized
}

// TransactionPostedData contains data for TransactionPosted events
type TransactionPostedData struct {
	TransactionID string `json:"transaction_id"`
	Direction     string `json:"direction,omitempty"`
}

// EventType returns the event type for TransactionPostedData
func (d *TransactionPostedData) EventType() EventType {
	return TransactionPosted
}

// SnapshotRefreshedData contains data for SnapshotRefreshed events
type SnapshotRefreshedData struct {
	LastSaleID        string `json:"last_sale_id,omitempty"`
	LastTransactionID string `json:"last_transaction_id,omitempty"`
	DocumentsSkipped  int    `json:"documents_skipped"`
	Forced            bool   `json:"forced"`
}

// EventType returns the event type for SnapshotRefreshedData
func (d *SnapshotRefreshedData) EventType() EventType {
	return SnapshotRefreshed
}

// RefreshFailedData contains data for RefreshFailed events
type RefreshFailedData struct {
	Error string `json:"error"`
}

// EventType returns the event type for RefreshFailedData
func (d *RefreshFailedData) EventType() EventType {
	return RefreshFailed
}

// SettingsChangedData contains data for SettingsChanged events
type SettingsChangedData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// EventType returns the event type for SettingsChangedData
func (d *SettingsChangedData) EventType() EventType {
	return SettingsChanged
}

// MarshalJSON customizes JSON serialization for Event so the typed data is
// flattened into a plain object for SSE consumers.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	aux := struct {
		Data json.RawMessage `json:"data,omitempty"`
		alias
	}{alias: alias(e)}

	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		aux.Data = raw
	}

	return json.Marshal(aux)
}
