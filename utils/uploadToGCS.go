package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ErrArchiveNotConfigured = errors.New("GCS_BUCKET is required")

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// Set GCS_CREDENTIALS_JSON to pass explicit JSON (e.g. locally).
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func archiveBucket() string {
	return strings.TrimSpace(os.Getenv("GCS_BUCKET"))
}

// ExportObjectName is "exports/{report}/{YYYY}/{MM}/{report}_{unique}.xlsx".
func ExportObjectName(report string, at time.Time) string {
	at = at.UTC()
	return path.Join(
		"exports",
		report,
		at.Format("2006"),
		at.Format("01"),
		fmt.Sprintf("%s_%s.xlsx", report, GenerateUniqueFilename()),
	)
}

// UploadBytesToGCS writes data to objectName in GCS_BUCKET and returns the
// gs:// URI of the stored object.
func UploadBytesToGCS(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	bucketName := archiveBucket()
	if bucketName == "" {
		return "", ErrArchiveNotConfigured
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload bytes to Google Cloud Storage: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
