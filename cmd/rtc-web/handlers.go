package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang/glog"

	"github.com/alittlebrighter/rtclock"
	"github.com/alittlebrighter/rtclock/codec"
	"github.com/alittlebrighter/rtclock/models"
	"github.com/alittlebrighter/rtclock/thermometer"
	"github.com/alittlebrighter/rtclock/util"
)

type appContext struct {
	clock      *rtclock.Clock
	config     *rtclock.Config
	configPath string
	meter      thermometer.Thermometer
}

func (app *appContext) routes(mux *http.ServeMux) {
	mux.HandleFunc("/", CORSFilterFactory(app.configHandler))
	mux.HandleFunc("/time", CORSFilterFactory(app.timeHandler))
	mux.HandleFunc("/temperature", CORSFilterFactory(app.temperatureHandler))
	mux.HandleFunc("/alarms", CORSFilterFactory(app.alarmsHandler))
	mux.HandleFunc("/events", CORSFilterFactory(app.eventsHandler))
}

// configHandler returns the clock configuration. A POST replaces it, reprograms the chip
// and saves the configuration file.
func (app *appContext) configHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		next := new(rtclock.Clock)
		if err := json.NewDecoder(r.Body).Decode(next); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := app.clock.Update(next); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, rtclock.ErrConfig) {
				status = http.StatusUnprocessableEntity
			}
			writeError(w, status, err)
			return
		}

		if app.configPath != "" {
			if err := rtclock.SaveConfig(app.configPath, app.config); err != nil {
				glog.Errorf("Could not save configuration: %v", err)
			}
		}
	}

	writeJSON(w, app.clock.Settings())
}

// timeHandler returns the chip time. A POST sets it from an RFC 3339 time or epoch seconds.
func (app *appContext) timeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		req := new(models.SetTime)
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		target, err := req.Target()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := app.clock.Set(target); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, codec.ErrOutOfRange) {
				status = http.StatusUnprocessableEntity
			}
			writeError(w, status, err)
			return
		}
	}

	report, err := app.clock.Status()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, report)
}

// temperatureHandler serves the chip temperature in the format JSONWebService reads.
func (app *appContext) temperatureHandler(w http.ResponseWriter, r *http.Request) {
	temp, units, err := app.meter.ReadTemperature()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, &thermometer.TemperatureReading{Units: units, Error: err.Error()})
		return
	}

	preferred := app.clock.Settings().UnitPreference
	if preferred == "" {
		preferred = util.Celsius
	}
	writeJSON(w, &thermometer.TemperatureReading{
		Temperature: util.ConvertTemp(temp, units, preferred),
		Units:       preferred,
	})
}

func (app *appContext) alarmsHandler(w http.ResponseWriter, r *http.Request) {
	statuses, err := app.clock.AlarmStatuses()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, statuses)
}

func (app *appContext) eventsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, app.clock.Events())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("Could not encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	fmt.Fprintf(w, "ERROR: %s", err)
}

func CORSFilterFactory(handler func(http.ResponseWriter, *http.Request)) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Methods", "GET,POST")
		w.Header().Add("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler(w, r)
	}
}
