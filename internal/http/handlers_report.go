package http

import (
	"log/slog"
	"net/http"

	tlog "tally/internal/log"
	"tally/internal/period"
)

// builder produces a report payload for a GET request.
type builder func(r *http.Request) (any, error)

// cached serves the JSON encoding of build from the response cache. Keys
// include today's date because relative ranges move with it.
func (s *Server) cached(build builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := s.engine.Today().String() + " " + r.URL.Path + "?" + r.URL.Query().Encode()
		if body, ok := s.responses.Get(key); ok {
			w.Header().Set("X-Cache", "hit")
			writeRaw(w, http.StatusOK, body)
			return
		}

		payload, err := build(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		body, err := jsonBody(payload)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.responses.Set(key, body)
		slog.DebugContext(r.Context(), "Report cached", "component", tlog.ComponentCache, "key", key, "bytes", len(body))
		w.Header().Set("X-Cache", "miss")
		writeRaw(w, http.StatusOK, body)
	}
}

// direct serves build without caching. Used for views the worker writes to
// out of band, which the server's invalidation never sees.
func (s *Server) direct(build builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := build(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func (s *Server) window(r *http.Request, needGranularity bool) (reportQuery, period.Range, error) {
	q, err := parseReportQuery(r, needGranularity)
	if err != nil {
		return reportQuery{}, period.Range{}, err
	}
	return q, s.engine.Resolve(r.Context(), q.Spec), nil
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q, rng, err := s.window(r, false)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Range: rng, Title: period.Title(q.Spec), Data: rng})
}

func (s *Server) summary(r *http.Request) (any, error) {
	q, rng, err := s.window(r, false)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Summarize(r.Context(), rng)
	if err != nil {
		return nil, err
	}
	return envelope{Range: rng, Title: period.Title(q.Spec), Data: out}, nil
}

func (s *Server) detail(r *http.Request) (any, error) {
	q, rng, err := s.window(r, false)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.Detail(r.Context(), rng)
	if err != nil {
		return nil, err
	}
	return envelope{Range: rng, Title: period.Title(q.Spec), Data: out}, nil
}

func (s *Server) timeSeries(r *http.Request) (any, error) {
	q, rng, err := s.window(r, true)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.TimeSeries(r.Context(), rng, q.Granularity)
	if err != nil {
		return nil, err
	}
	return envelope{Range: rng, Title: period.Title(q.Spec), Granularity: q.Granularity, Data: out}, nil
}

func (s *Server) summaryGrouped(r *http.Request) (any, error) {
	q, rng, err := s.window(r, true)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.SummaryGrouped(r.Context(), rng, q.Granularity)
	if err != nil {
		return nil, err
	}
	return envelope{Range: rng, Title: period.Title(q.Spec), Granularity: q.Granularity, Data: out}, nil
}

func (s *Server) detailGrouped(r *http.Request) (any, error) {
	q, rng, err := s.window(r, true)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.DetailGrouped(r.Context(), rng, q.Granularity)
	if err != nil {
		return nil, err
	}
	return envelope{Range: rng, Title: period.Title(q.Spec), Granularity: q.Granularity, Data: out}, nil
}

func (s *Server) history(r *http.Request) (any, error) {
	q, rng, err := s.window(r, true)
	if err != nil {
		return nil, err
	}
	out, err := s.engine.History(r.Context(), rng, q.Granularity)
	if err != nil {
		return nil, err
	}
	return envelope{Range: rng, Title: period.Title(q.Spec), Granularity: q.Granularity, Data: out}, nil
}

// portfolio takes an optional as_of date, today by default.
func (s *Server) portfolio(r *http.Request) (any, error) {
	asOf, err := parseDateParam(r, "as_of")
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.engine.Today()
	}
	return s.engine.Portfolio(r.Context(), asOf)
}
