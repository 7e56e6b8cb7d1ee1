package domain

import "time"

// Bucket is a logical storage namespace.
type Bucket string

const (
	BucketProductImages   Bucket = "product-images"
	BucketBrandLogos      Bucket = "brand-logos"
	BucketVendorDocuments Bucket = "vendor-documents"
	BucketReviewImages    Bucket = "review-images"
	BucketOrderInvoices   Bucket = "order-invoices"
)

var knownBuckets = map[Bucket]struct{}{
	BucketProductImages:   {},
	BucketBrandLogos:      {},
	BucketVendorDocuments: {},
	BucketReviewImages:    {},
	BucketOrderInvoices:   {},
}

// Valid reports whether b is one of the known namespaces.
func (b Bucket) Valid() bool {
	_, ok := knownBuckets[b]
	return ok
}

type FileDescriptor struct {
	Type string `json:"fileType" validate:"required"`
	Size int64  `json:"fileSize" validate:"gt=0"`
}

// SignedUploadRequest asks for a one-shot PUT target for a single file.
type SignedUploadRequest struct {
	OwnerID  string
	FileName string
	File     FileDescriptor
	Bucket   Bucket
}

type SignedUploadResult struct {
	UploadURL  string    `json:"uploadUrl"`
	StorageKey string    `json:"filePath"`
	FileType   string    `json:"fileType"`
	FileSize   int64     `json:"fileSize"`
	PublicURL  string    `json:"publicUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Upload record states.
const (
	UploadPending   = "pending"
	UploadConfirmed = "confirmed"
)

// UploadRecord tracks a signed upload until the client confirms the PUT landed.
// PK: bucket, SK: storage_key.
type UploadRecord struct {
	Bucket      string     `json:"bucket" dynamodbav:"bucket"`
	StorageKey  string     `json:"filePath" dynamodbav:"storage_key"`
	UploadID    string     `json:"id" dynamodbav:"upload_id"`
	OwnerID     string     `json:"ownerId" dynamodbav:"owner_id"`
	FileType    string     `json:"fileType" dynamodbav:"file_type"`
	FileSize    int64      `json:"fileSize" dynamodbav:"file_size"`
	Status      string     `json:"status" dynamodbav:"status"`
	PublicURL   string     `json:"publicUrl" dynamodbav:"public_url"`
	CreatedAt   time.Time  `json:"created" dynamodbav:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed,omitempty" dynamodbav:"confirmed_at"`
}

// ObjectInfo is what the storage provider reports about a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}
