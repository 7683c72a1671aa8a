package jetdb

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/jetsub/internal/httputil"
)

// jetRowJSON is JetRow with an undefined volatility encoded as null.
type jetRowJSON struct {
	JetIndex         int       `json:"jet_index"`
	NumConstituents  int       `json:"num_constituents"`
	PrunedMass       float64   `json:"pruned_mass"`
	MassDrop         float64   `json:"mass_drop"`
	NumSubjets       int       `json:"num_subjets"`
	PrunedPt         float64   `json:"pruned_pt"`
	PrunedEta        float64   `json:"pruned_eta"`
	PrunedPhi        float64   `json:"pruned_phi"`
	Error            string    `json:"error,omitempty"`
	Volatility       *float64  `json:"volatility"`
	VolatilityTrials int       `json:"volatility_trials"`
	Converged        bool      `json:"converged"`
	TrialMasses      []float64 `json:"trial_masses,omitempty"`
}

func toJSON(r JetRow) jetRowJSON {
	out := jetRowJSON{
		JetIndex:         r.JetIndex,
		NumConstituents:  r.NumConstituents,
		PrunedMass:       r.PrunedMass,
		MassDrop:         r.MassDrop,
		NumSubjets:       r.NumSubjets,
		PrunedPt:         r.PrunedPt,
		PrunedEta:        r.PrunedEta,
		PrunedPhi:        r.PrunedPhi,
		Error:            r.Error,
		VolatilityTrials: r.VolatilityTrials,
		Converged:        r.Converged,
		TrialMasses:      r.TrialMasses,
	}
	if !math.IsNaN(r.Volatility) {
		v := r.Volatility
		out.Volatility = &v
	}
	return out
}

// AttachAdminRoutes mounts the debug pages for the run store on mux under
// /debug/: a tailsql console over the database, the run list and per-run
// results as JSON. tsweb restricts /debug/ to loopback and tailnet clients.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://jetsub.db", db.DB, &tailsql.DBOptions{
		Label: "Jet runs",
	})
	debug.Handle("tailsql/", "SQL console over stored runs", tsql.NewMux())

	debug.Handle("runs", "Stored runs as JSON", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runs, err := db.ListRuns()
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
			return
		}
		if runs == nil {
			runs = []Run{}
		}
		httputil.WriteJSON(w, http.StatusOK, runs)
	}))

	debug.Handle("runs/", "Jet results of one run as JSON (/debug/runs/<run_id>)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		runID := strings.TrimPrefix(r.URL.Path, "/debug/runs/")
		if runID == "" || strings.Contains(runID, "/") {
			httputil.NotFound(w, "run id required")
			return
		}
		run, err := db.GetRun(runID)
		if errors.Is(err, ErrRunNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		rows, err := db.GetResults(runID)
		if err != nil {
			httputil.WriteJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		jets := make([]jetRowJSON, len(rows))
		for i, row := range rows {
			jets[i] = toJSON(row)
		}
		httputil.WriteJSON(w, http.StatusOK, struct {
			Run  *Run         `json:"run"`
			Jets []jetRowJSON `json:"jets"`
		}{run, jets})
	}))
	return nil
}
