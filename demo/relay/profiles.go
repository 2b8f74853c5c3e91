package relay

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"otrng/configs"
	"otrng/profile"
)

func profileStoreKey(identity string) string {
	return fmt.Sprintf(configs.RelayPublicKey, identity)
}

// HandlePublishProfile stores identity's signed client profile so a
// peer can fetch it before starting a DAKE, learning both identity's
// instance tag and its long-term/forging public keys from one
// document. It plays the role the teacher's HandlePostKeys plays for
// a Signal prekey bundle, generalized to an OTRv4 profile.ClientProfile.
func (r *Relay) HandlePublishProfile(w http.ResponseWriter, req *http.Request) {
	identity := mux.Vars(req)["userID"]
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	if _, err := profile.DecodeClientProfile(raw); err != nil {
		http.Error(w, "malformed client profile", http.StatusBadRequest)
		return
	}
	if err := r.redisClient.Set(r.ctx, profileStoreKey(identity), raw, 0).Err(); err != nil {
		r.logger.Errorf("error storing profile for %s: %v", identity, err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleGetProfile returns a previously published client profile, the
// counterpart of the teacher's HandleGetKeys.
func (r *Relay) HandleGetProfile(w http.ResponseWriter, req *http.Request) {
	identity := mux.Vars(req)["userID"]
	raw, err := r.redisClient.Get(r.ctx, profileStoreKey(identity)).Bytes()
	if err != nil {
		http.Error(w, "no profile on file", http.StatusNotFound)
		return
	}
	w.Write(raw)
}
