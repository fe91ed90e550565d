package vision

import (
	"context"
	"errors"
	"fmt"
	"os"

	gvision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"docpipe/internal/logger"
)

// GoogleVision transcribes images through Google Cloud Vision document
// text detection. The Vision API does not meter tokens, so Usage is
// always zero for this backend.
type GoogleVision struct {
	client *gvision.ImageAnnotatorClient
	config Config
	log    zerolog.Logger
}

// NewGoogleVision creates the Google-backed transcriber with
// credentials from the environment: GOOGLE_CREDENTIALS inline JSON,
// GOOGLE_APPLICATION_CREDENTIALS file path, or application default
// credentials, in that order.
func NewGoogleVision(ctx context.Context, config Config) (*GoogleVision, error) {
	const op = "NewGoogleVision"

	var client *gvision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = gvision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, NewError(op, err, "failed to create client with GOOGLE_CREDENTIALS", false)
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = gvision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, NewError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS", false)
		}
	} else {
		client, err = gvision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, NewError(op, ErrMissingCredentials, "no credentials found in environment", false)
		}
	}

	return NewGoogleVisionWithClient(client, config), nil
}

// NewGoogleVisionWithClient creates the transcriber with an explicit
// client (for testing).
func NewGoogleVisionWithClient(client *gvision.ImageAnnotatorClient, config Config) *GoogleVision {
	return &GoogleVision{
		client: client,
		config: config.normalized(),
		log:    logger.WithComponent("vision-google"),
	}
}

// Transcribe runs document text detection on one image.
func (g *GoogleVision) Transcribe(ctx context.Context, image []byte) (*Transcription, error) {
	return transcribeWithRetry(ctx, g.config, g.log, func(ctx context.Context) (*Transcription, error) {
		const op = "Transcribe"

		annotation, err := g.client.DetectDocumentText(ctx, &visionpb.Image{Content: image}, nil)
		if err != nil {
			return nil, classifyGoogleError(op, err)
		}
		if annotation == nil {
			// Nothing detected: a valid blank tile.
			return &Transcription{}, nil
		}

		return &Transcription{Text: annotation.Text}, nil
	})
}

// Close closes the underlying Vision client.
func (g *GoogleVision) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// classifyGoogleError maps gRPC status codes onto the package taxonomy.
func classifyGoogleError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(op, err, "request timed out", true)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(op, err, "request canceled", false)
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Internal, codes.Aborted:
			return NewError(op, err, fmt.Sprintf("Vision API error (%s)", st.Code()), true)
		default:
			return NewError(op, err, fmt.Sprintf("Vision API error (%s)", st.Code()), false)
		}
	}

	return NewError(op, err, "transport failure", true)
}
