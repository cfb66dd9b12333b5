package telephony

import (
	"fmt"
	"net/http"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/livekit/protocol/webhook"
	"google.golang.org/protobuf/encoding/protojson"
)

// WebhookVerifier authenticates a provider callback and decodes it.
//
// Errors wrap ErrInvalidSignature when the request is not authentic and
// ErrMalformedEvent when it is authentic but cannot be projected.
type WebhookVerifier interface {
	Verify(r *http.Request) (Event, error)
}

// LiveKitVerifier checks the signed Authorization JWT and the body hash it carries.
type LiveKitVerifier struct {
	keys auth.KeyProvider
}

func NewLiveKitVerifier(apiKey, apiSecret string) *LiveKitVerifier {
	return &LiveKitVerifier{keys: auth.NewSimpleKeyProvider(apiKey, apiSecret)}
}

var unmarshalOpts = protojson.UnmarshalOptions{DiscardUnknown: true}

func (v *LiveKitVerifier) Verify(r *http.Request) (Event, error) {
	body, err := webhook.Receive(r, v.keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var ev livekit.WebhookEvent
	if err := unmarshalOpts.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return FromLiveKit(&ev)
}
