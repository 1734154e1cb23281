package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/livetranscribe/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const speechAPIEndpointPort = 443

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
	Location        string
}

// recognizeStream is the part of the generated bidi client the recognizer uses.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type streamOpener func(ctx context.Context) (recognizeStream, error)

// CloudSpeechRecognizer runs one Speech-to-Text v2 streaming call per
// Recognize. The underlying gRPC client is shared by every connection.
type CloudSpeechRecognizer struct {
	recognizer string
	open       streamOpener
	closeFn    func() error
}

// NewSpeechClient dials Speech-to-Text v2 on the regional endpoint of cfg.Location.
func NewSpeechClient(ctx context.Context, cfg CloudSpeechConfig) (*speech.Client, error) {
	detect := &credentials.DetectOptions{
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		CredentialsFile: cfg.CredentialsFile,
	}
	if cfg.CredentialsJSON != "" {
		detect.CredentialsJSON = []byte(cfg.CredentialsJSON)
	}
	creds, err := credentials.DetectDefault(detect)
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if endpoint := speechEndpoint(cfg.Location); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return client, nil
}

func NewCloudSpeechRecognizer(client *speech.Client, cfg CloudSpeechConfig) *CloudSpeechRecognizer {
	return &CloudSpeechRecognizer{
		recognizer: recognizerPath(cfg.ProjectID, cfg.Location),
		open: func(ctx context.Context) (recognizeStream, error) {
			return client.StreamingRecognize(ctx)
		},
		closeFn: client.Close,
	}
}

func recognizerPath(projectID, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s/recognizers/_", projectID, strings.TrimSpace(location))
}

func speechEndpoint(location string) string {
	location = strings.TrimSpace(location)
	if location == "" || location == "global" {
		return ""
	}
	return fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)
}

func (r *CloudSpeechRecognizer) Recognize(ctx context.Context, src transcriber.RequestSource, onResponse func(transcriber.Response)) error {
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := r.open(streamCtx)
	if err != nil {
		return fmt.Errorf("%w: open streaming recognize: %v", transcriber.ErrBackendUnavailable, err)
	}
	slog.Debug("cloud speech stream opened", "recognizer", r.recognizer)

	sendDone := make(chan error, 1)
	go func() {
		sendDone <- r.pumpRequests(streamCtx, stream, src)
	}()

	recvErr := r.receive(stream, onResponse)
	cancel()
	if err := <-sendDone; err != nil {
		slog.Debug("cloud speech send loop ended with error", "error", err)
	}

	if recvErr == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return classifyRecvError(recvErr)
}

func (r *CloudSpeechRecognizer) receive(stream recognizeStream, onResponse func(transcriber.Response)) error {
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			slog.Debug("cloud speech stream closed by backend")
			return nil
		}
		if err != nil {
			return err
		}
		dispatchResponse(resp, onResponse)
	}
}

func (r *CloudSpeechRecognizer) pumpRequests(ctx context.Context, stream recognizeStream, src transcriber.RequestSource) error {
	defer func() {
		_ = stream.CloseSend()
	}()
	for {
		req, ok := src.Next(ctx)
		if !ok {
			return nil
		}
		if err := stream.Send(r.toProto(req)); err != nil {
			if !req.IsConfig() {
				src.Requeue(req.Audio)
			}
			if errors.Is(err, io.EOF) {
				// The real status is reported by Recv.
				return nil
			}
			return err
		}
	}
}

func (r *CloudSpeechRecognizer) toProto(req transcriber.Request) *speechpb.StreamingRecognizeRequest {
	if !req.IsConfig() {
		return &speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: req.Audio},
		}
	}
	cfg := req.Config
	return &speechpb.StreamingRecognizeRequest{
		Recognizer: r.recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         cfg.Model,
					LanguageCodes: cfg.LanguageCodes,
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          toProtoEncoding(cfg.Encoding),
							SampleRateHertz:   int32(cfg.SampleRateHertz),
							AudioChannelCount: int32(cfg.ChannelCount),
						},
					},
					Features: &speechpb.RecognitionFeatures{},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
					InterimResults:            cfg.InterimResults,
					EnableVoiceActivityEvents: cfg.VoiceActivityEvents,
				},
			},
		},
	}
}

func toProtoEncoding(e transcriber.AudioEncoding) speechpb.ExplicitDecodingConfig_AudioEncoding {
	switch e {
	case transcriber.AudioEncodingLinear16:
		return speechpb.ExplicitDecodingConfig_LINEAR16
	default:
		return speechpb.ExplicitDecodingConfig_AUDIO_ENCODING_UNSPECIFIED
	}
}

// dispatchResponse forwards the first result that carries an alternative.
func dispatchResponse(resp *speechpb.StreamingRecognizeResponse, onResponse func(transcriber.Response)) {
	if ev := resp.GetSpeechEventType(); ev != speechpb.StreamingRecognizeResponse_SPEECH_EVENT_TYPE_UNSPECIFIED {
		slog.Debug("voice activity event", "event", ev.String())
	}
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		onResponse(transcriber.Response{
			Transcript: alts[0].GetTranscript(),
			IsFinal:    result.GetIsFinal(),
			Confidence: alts[0].GetConfidence(),
		})
		return
	}
}

func classifyRecvError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument, codes.NotFound:
		return fmt.Errorf("%w: %v", transcriber.ErrBackendUnavailable, err)
	}
	if isDurationLimitError(st) {
		slog.Info("cloud speech stream reached the backend duration limit", "message", st.Message())
	}
	return err
}

func isDurationLimitError(st *status.Status) bool {
	if st.Code() != codes.Aborted && st.Code() != codes.OutOfRange {
		return false
	}
	msg := strings.ToLower(st.Message())
	return strings.Contains(msg, "max duration") || strings.Contains(msg, "5 minutes")
}

// Shutdown closes the shared gRPC client.
func (r *CloudSpeechRecognizer) Shutdown() error {
	if r.closeFn == nil {
		return nil
	}
	return r.closeFn()
}
