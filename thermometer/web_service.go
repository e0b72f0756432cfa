package thermometer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/alittlebrighter/rtclock/util"
)

var ErrUnavailable = errors.New("could not connect to thermometer web service")

// JSONWebService reads the temperature from an HTTP endpoint answering with a
// TemperatureReading, such as another clock's /temperature.
type JSONWebService struct {
	client   *http.Client
	endpoint string
}

func NewJSONWebService(endpoint string) (*JSONWebService, error) {
	thermometer := &JSONWebService{client: &http.Client{Timeout: 10 * time.Second}, endpoint: endpoint}

	if _, _, err := thermometer.ReadTemperature(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	glog.Infof("thermometer: using %s", endpoint)
	return thermometer, nil
}

func (meter *JSONWebService) ReadTemperature() (float64, util.TemperatureUnits, error) {
	req, err := http.NewRequest(http.MethodGet, meter.endpoint, nil)
	if err != nil {
		return 0, util.Celsius, err
	}
	req.Header.Add("Accept", "application/json")

	resp, err := meter.client.Do(req)
	if err != nil {
		return 0, util.Celsius, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return 0, util.Celsius, fmt.Errorf("%s: %s", meter.endpoint, resp.Status)
	}

	tempReading := new(TemperatureReading)
	if err := json.NewDecoder(resp.Body).Decode(tempReading); err != nil {
		return 0, util.Celsius, err
	}

	return tempReading.Explode()
}

func (meter *JSONWebService) Shutdown() {
	meter.client.CloseIdleConnections()
}

// TemperatureReading is the JSON body served for a temperature request.
type TemperatureReading struct {
	Temperature float64               `json:"temperature"`
	Units       util.TemperatureUnits `json:"units"`
	Error       string                `json:"error,omitempty"`
}

func (r *TemperatureReading) Explode() (float64, util.TemperatureUnits, error) {
	if r.Error != "" {
		return r.Temperature, r.Units, errors.New(r.Error)
	}
	return r.Temperature, r.Units, nil
}
