package proxy

import "github.com/damacus/iron-folders/internal/models"

// Endpoint names under /<service>/
const (
	EndpointFetchContent = "fetch-content"
	EndpointCreateFolder = "create-folder"
	EndpointUploadFile   = "upload-file"
)

// Form field names of the upload-file request
const (
	FieldAccessKeyID     = "accessKeyId"
	FieldSecretAccessKey = "secretAccessKey"
	FieldRegion          = "region"
	FieldBucketName      = "bucketName"
	FieldCurrentPath     = "currentPath"
	FieldFiles           = "files"
)

// Auth carries the caller's credentials on every request
type Auth struct {
	AccessKeyID     string `json:"accessKeyId" form:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" form:"secretAccessKey"`
	Region          string `json:"region" form:"region"`
	BucketName      string `json:"bucketName" form:"bucketName"`
}

// FetchContentRequest is the body of fetch-content
type FetchContentRequest struct {
	Auth
	CurrentPath string `json:"currentPath" form:"currentPath"`
}

// CreateFolderRequest is the body of create-folder
type CreateFolderRequest struct {
	Auth
	CurrentPath string `json:"currentPath" form:"currentPath"`
	FolderName  string `json:"folderName" form:"folderName"`
}

// ListingResponse is returned by fetch-content
type ListingResponse struct {
	Folders []models.Entry `json:"folders"`
	Files   []models.Entry `json:"files"`
}

// AckResponse is returned by create-folder and upload-file
type AckResponse struct {
	Message string   `json:"message"`
	Keys    []string `json:"keys,omitempty"`
}

// ErrorResponse is the body of any non-2xx reply
type ErrorResponse struct {
	Message string `json:"message"`
}
