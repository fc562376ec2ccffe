package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/utils"
)

var log = logging.Logger("api")

const maxWebhookBody = 1 << 20

// UploadCompletePayload is posted by the upload pipeline once an asset is stored
type UploadCompletePayload struct {
	RoomID       string `json:"roomId"`
	OriginalName string `json:"originalName"`
	PublicURL    string `json:"publicUrl"`
}

// UploadWebhookHandler announces finished uploads to their room
type UploadWebhookHandler struct {
	rooms       RoomServicer
	secretToken string
}

// NewUploadWebhookHandler creates the handler. An empty secret disables signature checks.
func NewUploadWebhookHandler(rooms RoomServicer, secretToken string) *UploadWebhookHandler {
	return &UploadWebhookHandler{rooms: rooms, secretToken: secretToken}
}

// ServeHTTP handles POST /upload-complete
func (h *UploadWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Limit request body size to prevent abuse
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Warnf("Error reading webhook body: %v", err)
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.secretToken != "" {
		if !h.verifySignature(r, body) {
			log.Warnf("Invalid upload webhook signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var payload UploadCompletePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warnf("Error parsing webhook JSON: %v", err)
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return
	}
	if payload.RoomID == "" || payload.PublicURL == "" {
		http.Error(w, "roomId and publicUrl are required", http.StatusBadRequest)
		return
	}

	log.Infof("Audio upload completed, announcing to room %s: %s",
		utils.SanitizeLogString(payload.RoomID), utils.SanitizeLogString(payload.OriginalName))

	src := models.AudioSource{
		ID:      payload.PublicURL,
		Title:   payload.OriginalName,
		AddedBy: payload.RoomID,
	}
	if err := h.rooms.AnnounceAudioSource(payload.RoomID, src); err != nil {
		log.Errorf("Failed to announce upload: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "Error announcing upload",
			"error":   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// verifySignature checks X-Upload-Signature: v0=hex(HMAC-SHA256(secret, "v0:"+timestamp+":"+body))
func (h *UploadWebhookHandler) verifySignature(r *http.Request, body []byte) bool {
	signatureHeader := r.Header.Get("X-Upload-Signature")
	if signatureHeader == "" {
		log.Debugf("Missing X-Upload-Signature header")
		return false
	}

	// Parse the signature format (should be v0=HASH)
	parts := strings.SplitN(signatureHeader, "=", 2)
	if len(parts) != 2 || parts[0] != "v0" {
		log.Debugf("Invalid signature format")
		return false
	}

	timestamp := r.Header.Get("X-Upload-Timestamp")
	if timestamp == "" {
		log.Debugf("Missing X-Upload-Timestamp header")
		return false
	}

	return hmac.Equal([]byte(SignUpload(h.secretToken, timestamp, body)), []byte(parts[1]))
}

// SignUpload returns the hex signature the upload webhook expects
func SignUpload(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)
	return hex.EncodeToString(mac.Sum(nil))
}
