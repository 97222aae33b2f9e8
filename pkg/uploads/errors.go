package uploads

import "errors"

// ErrBucketRequired is returned when Bucket is empty in Config.
var ErrBucketRequired = errors.New("bucket is required")

// ErrKeyRequired is returned when an object key is empty.
var ErrKeyRequired = errors.New("object key is required")
