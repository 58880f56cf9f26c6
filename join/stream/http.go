package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/tryfix/log"
)

type Err struct {
	Err string `json:"error"`
}

// Info is the static description of a registered join.
type Info struct {
	Name               string `json:"name"`
	ID                 string `json:"id"`
	Type               string `json:"type"`
	Domain             string `json:"domain"`
	LeftRelativeSize   int64  `json:"left_relative_size"`
	RightRelativeSize  int64  `json:"right_relative_size"`
	MinCleanUpInterval int64  `json:"min_clean_up_interval"`
	MaxOutputDelay     int64  `json:"max_output_delay"`
}

func infoOf(name string, j *TimeBoundedStreamJoin) Info {
	return Info{
		Name:               name,
		ID:                 j.ID().String(),
		Type:               j.Type(),
		Domain:             j.Domain().String(),
		LeftRelativeSize:   j.LeftRelativeSize(),
		RightRelativeSize:  j.RightRelativeSize(),
		MinCleanUpInterval: j.MinCleanUpInterval(),
		MaxOutputDelay:     j.MaxOutputDelay(),
	}
}

type handler struct {
	registry Registry
	logger   log.Logger
}

func (h *handler) encodeError(w http.ResponseWriter, status int, e error) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(Err{Err: e.Error()}); err != nil {
		h.logger.Error(err)
	}
}

func (h *handler) joins(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.registry.List()); err != nil {
		h.logger.Error(err)
	}
}

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	name := mux.Vars(r)[`join`]
	j, err := h.registry.Join(name)
	if err != nil {
		h.encodeError(w, http.StatusNotFound, err)
		return
	}

	if err := json.NewEncoder(w).Encode(infoOf(name, j)); err != nil {
		h.logger.Error(err)
	}
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	j, err := h.registry.Join(mux.Vars(r)[`join`])
	if err != nil {
		h.encodeError(w, http.StatusNotFound, err)
		return
	}

	gometrics.WriteJSONOnce(j.Stats(), w)
}

// NewRouter serves the registry's joins:
//
//	GET /joins                list of join names
//	GET /joins/{join}         bounds and delays of a join
//	GET /joins/{join}/stats   row, pair and state counters of a join
func NewRouter(registry Registry, logger log.Logger) *mux.Router {
	h := &handler{registry: registry, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc(`/joins`, h.joins).Methods(http.MethodGet)
	r.HandleFunc(`/joins/{join}`, h.info).Methods(http.MethodGet)
	r.HandleFunc(`/joins/{join}/stats`, h.stats).Methods(http.MethodGet)

	return r
}

func MakeEndpoints(host string, registry Registry, logger log.Logger) {
	r := NewRouter(registry, logger)

	go func() {
		err := http.ListenAndServe(host, handlers.CORS()(r))
		if err != nil {
			logger.Error(`k-join.Registry.Http`,
				fmt.Sprintf(`Cannot start web server : %+v`, err))
		}
	}()

	logger.Info(fmt.Sprintf(`Http server started on %s`, host))
}
