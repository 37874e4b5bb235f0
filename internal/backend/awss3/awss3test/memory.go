// Package awss3test provides an in-memory S3 client for tests of code built
// on the awss3 adapter.
//
// Keys are stored exactly as written. Unlike path-routed fakes, a folder
// marker such as "docs/" keeps its trailing slash, so delimiter listings
// report it as a common prefix the way S3 does.
package awss3test

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

const defaultMaxKeys = 1000

// Object is a stored object
type Object struct {
	Data        []byte
	ContentType string
}

type multipartUpload struct {
	bucket      string
	key         string
	contentType string
	parts       map[int32][]byte
}

// Memory implements the S3 operations the awss3 adapter calls
type Memory struct {
	// PageSize caps the keys returned per ListObjectsV2 page when > 0
	PageSize int

	mu      sync.Mutex
	buckets map[string]map[string]Object
	uploads map[string]*multipartUpload
	nextID  int
}

// New returns an empty store holding the given buckets
func New(buckets ...string) *Memory {
	m := &Memory{
		buckets: make(map[string]map[string]Object),
		uploads: make(map[string]*multipartUpload),
	}
	for _, b := range buckets {
		m.CreateBucket(b)
	}
	return m
}

// CreateBucket adds an empty bucket; existing buckets are left alone
func (m *Memory) CreateBucket(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[name]; !ok {
		m.buckets[name] = make(map[string]Object)
	}
}

// Object returns the object stored under key
func (m *Memory) Object(bucket, key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	return obj, ok
}

// Keys returns every key in bucket, sorted
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.buckets[bucket])
}

func (m *Memory) ListBuckets(ctx context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.buckets))
	for name := range m.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		out.Buckets = append(out.Buckets, types.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

// ListObjectsV2 groups keys by Delimiter after Prefix. Continuation tokens
// are the last key consumed, so a common prefix never spans two pages.
func (m *Memory) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := aws.ToString(in.Bucket)
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, noSuchBucket(bucket)
	}

	prefix := aws.ToString(in.Prefix)
	delimiter := aws.ToString(in.Delimiter)
	maxKeys := int(aws.ToInt32(in.MaxKeys))
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	if m.PageSize > 0 && m.PageSize < maxKeys {
		maxKeys = m.PageSize
	}
	after := aws.ToString(in.StartAfter)
	if token := aws.ToString(in.ContinuationToken); token != "" {
		after = token
	}

	out := &s3.ListObjectsV2Output{
		Name:              in.Bucket,
		Prefix:            in.Prefix,
		Delimiter:         in.Delimiter,
		ContinuationToken: in.ContinuationToken,
		MaxKeys:           aws.Int32(int32(maxKeys)),
		IsTruncated:       aws.Bool(false),
	}
	seen := make(map[string]bool)
	count := 0
	last := ""
	for _, key := range sortedKeys(objects) {
		if !strings.HasPrefix(key, prefix) || key <= after {
			continue
		}

		group := ""
		if delimiter != "" {
			if i := strings.Index(key[len(prefix):], delimiter); i >= 0 {
				group = key[:len(prefix)+i+len(delimiter)]
			}
		}
		if group != "" && seen[group] {
			last = key
			continue
		}

		if count == maxKeys {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(last)
			break
		}
		if group != "" {
			seen[group] = true
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(group)})
		} else {
			out.Contents = append(out.Contents, types.Object{
				Key:  aws.String(key),
				Size: aws.Int64(int64(len(objects[key].Data))),
				ETag: aws.String(etag(objects[key].Data)),
			})
		}
		count++
		last = key
	}
	out.KeyCount = aws.Int32(int32(count))
	return out, nil
}

func (m *Memory) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := readBody(ctx, in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := aws.ToString(in.Bucket)
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, noSuchBucket(bucket)
	}
	objects[aws.ToString(in.Key)] = Object{Data: data, ContentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

func (m *Memory) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket := aws.ToString(in.Bucket)
	if _, ok := m.buckets[bucket]; !ok {
		return nil, noSuchBucket(bucket)
	}
	m.nextID++
	id := strconv.Itoa(m.nextID)
	m.uploads[id] = &multipartUpload{
		bucket:      bucket,
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		parts:       make(map[int32][]byte),
	}
	return &s3.CreateMultipartUploadOutput{Bucket: in.Bucket, Key: in.Key, UploadId: aws.String(id)}, nil
}

func (m *Memory) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := readBody(ctx, in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.uploads[aws.ToString(in.UploadId)]
	if !ok {
		return nil, noSuchUpload(aws.ToString(in.UploadId))
	}
	u.parts[aws.ToInt32(in.PartNumber)] = data
	return &s3.UploadPartOutput{ETag: aws.String(etag(data))}, nil
}

func (m *Memory) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := aws.ToString(in.UploadId)
	u, ok := m.uploads[id]
	if !ok {
		return nil, noSuchUpload(id)
	}
	var buf bytes.Buffer
	if in.MultipartUpload != nil {
		for _, p := range in.MultipartUpload.Parts {
			part, ok := u.parts[aws.ToInt32(p.PartNumber)]
			if !ok {
				return nil, apiError(http.StatusBadRequest, "InvalidPart", fmt.Sprintf("part %d was not uploaded", aws.ToInt32(p.PartNumber)))
			}
			buf.Write(part)
		}
	}
	delete(m.uploads, id)
	m.buckets[u.bucket][u.key] = Object{Data: buf.Bytes(), ContentType: u.contentType}
	return &s3.CompleteMultipartUploadOutput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.key),
		ETag:   aws.String(etag(buf.Bytes())),
	}, nil
}

func (m *Memory) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func readBody(ctx context.Context, body io.Reader) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if body == nil {
		return []byte{}, nil
	}
	return io.ReadAll(body)
}

func sortedKeys(objects map[string]Object) []string {
	keys := make([]string, 0, len(objects))
	for k := range objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return strconv.Quote(hex.EncodeToString(sum[:]))
}

func noSuchBucket(bucket string) error {
	return apiError(http.StatusNotFound, "NoSuchBucket", fmt.Sprintf("The specified bucket does not exist: %s", bucket))
}

func noSuchUpload(id string) error {
	return apiError(http.StatusNotFound, "NoSuchUpload", fmt.Sprintf("The specified upload does not exist: %s", id))
}

// apiError builds the error shape the SDK returns for a failed response
func apiError(status int, code, message string) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
			Err:      &smithy.GenericAPIError{Code: code, Message: message},
		},
	}
}
