package parcels

const (
	TopicParcelChanges = "parcel.changes"
)

// Partition key = parcel id, so every change of one parcel stays ordered.
func PartitionKey(parcelID string) []byte { return []byte(parcelID) }
