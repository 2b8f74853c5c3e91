package relay

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"otrng/configs"
	"otrng/prekeyclient"
	"otrng/profile"
	"otrng/wire"
)

func ensembleStoreKey(identity string) string {
	return fmt.Sprintf(configs.EnsembleStoreKey, identity)
}

// HandleDAKE1 accepts a client's opening DAKE message for the given
// identity and replies with a signed DAKE2, parking the in-progress
// session under its instance tag until the matching DAKE3 arrives.
func (r *Relay) HandleDAKE1(w http.ResponseWriter, req *http.Request) {
	identity := mux.Vars(req)["userID"]
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	msg, err := prekeyclient.DecodeDAKE1(raw)
	if err != nil {
		http.Error(w, "malformed dake1", http.StatusBadRequest)
		return
	}

	session := prekeyclient.NewServerSession(r.serverIdentity, r.serverKP)
	dake2, err := session.ReceiveDAKE1(identity, msg)
	if err != nil {
		r.logger.Errorf("dake1 from %s rejected: %v", identity, err)
		http.Error(w, "dake1 rejected", http.StatusBadRequest)
		return
	}

	r.sessionMutex.Lock()
	r.sessions[msg.InstanceTag] = session
	r.sessionMutex.Unlock()

	w.Write(dake2.Serialize())
}

// HandleDAKE3 completes a parked session: it verifies the client's
// closing message and either reports stored-prekey count or stores a
// freshly published ensemble per prekey message offered.
func (r *Relay) HandleDAKE3(w http.ResponseWriter, req *http.Request) {
	identity := mux.Vars(req)["userID"]
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}
	msg, err := prekeyclient.DecodeDAKE3(raw)
	if err != nil {
		http.Error(w, "malformed dake3", http.StatusBadRequest)
		return
	}

	r.sessionMutex.Lock()
	session, ok := r.sessions[msg.InstanceTag]
	delete(r.sessions, msg.InstanceTag)
	r.sessionMutex.Unlock()
	if !ok {
		http.Error(w, "no such session", http.StatusBadRequest)
		return
	}

	storageInfo, material, err := session.ReceiveDAKE3(msg)
	if err != nil {
		r.logger.Errorf("dake3 from %s rejected: %v", identity, err)
		w.Write(session.MakeFailure().Serialize())
		return
	}

	if storageInfo {
		count, err := r.redisClient.LLen(r.ctx, ensembleStoreKey(identity)).Result()
		if err != nil {
			r.logger.Errorf("error counting ensembles for %s: %v", identity, err)
			w.Write(session.MakeFailure().Serialize())
			return
		}
		w.Write(session.MakeStorageStatus(uint32(count)).Serialize())
		return
	}

	if err := r.storeMaterial(identity, material); err != nil {
		r.logger.Errorf("error storing publication from %s: %v", identity, err)
		w.Write(session.MakeFailure().Serialize())
		return
	}
	w.Write(session.MakeSuccess().Serialize())
}

// storeMaterial fans a publication's prekey messages out into one
// Ensemble each, reusing the client/prekey profiles every prekey
// message in the same publication shares. A client that wants its
// prekey messages published must always include both profiles
// alongside them; this demo does not retain profiles across separate
// publications.
func (r *Relay) storeMaterial(identity string, material *prekeyclient.PublishedMaterial) error {
	if material.ClientProfile == nil || material.PrekeyProfile == nil {
		return fmt.Errorf("relay: publication missing client or prekey profile")
	}
	key := ensembleStoreKey(identity)
	for _, pm := range material.PrekeyMessages {
		ens := &profile.Ensemble{
			ClientProfile: material.ClientProfile,
			PrekeyProfile: material.PrekeyProfile,
			PrekeyMessage: pm,
		}
		if err := r.redisClient.RPush(r.ctx, key, ens.Serialize()).Err(); err != nil {
			return err
		}
	}
	return nil
}

// HandleEnsembleQuery answers the unauthenticated read path: it pops
// every ensemble on file for identity (one-shot, so each prekey
// message is handed out once) or reports none are available.
func (r *Relay) HandleEnsembleQuery(w http.ResponseWriter, req *http.Request) {
	identity := mux.Vars(req)["userID"]
	tag := parseInstanceTag(req.URL.Query().Get("tag"))

	key := ensembleStoreKey(identity)
	raw, err := r.redisClient.LPopCount(r.ctx, key, 1).Result()
	if err != nil || len(raw) == 0 {
		w.Write((&prekeyclient.NoPrekeyInStorage{InstanceTag: tag}).Serialize())
		return
	}

	ens, err := profile.DecodeEnsemble([]byte(raw[0]))
	if err != nil {
		r.logger.Errorf("corrupt ensemble on file for %s: %v", identity, err)
		w.Write((&prekeyclient.NoPrekeyInStorage{InstanceTag: tag}).Serialize())
		return
	}

	retrieval := &prekeyclient.EnsembleRetrieval{InstanceTag: tag, Ensembles: []*profile.Ensemble{ens}}
	w.Write(retrieval.Serialize())
}

func parseInstanceTag(s string) wire.InstanceTag {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return wire.InstanceTag(v)
}
