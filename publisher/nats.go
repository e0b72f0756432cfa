// Package publisher carries clock events over NATS.
package publisher

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/golang/glog"
	nats "github.com/nats-io/nats.go"

	"github.com/alittlebrighter/rtclock/models"
)

const (
	DefaultSubject = "rtc.alarm"
	TimeGetSubject = "rtc.time.get"
	TimeSetSubject = "rtc.time.set"
)

// TimeService is the part of the clock answering time requests.
type TimeService interface {
	Status() (*models.TimeReport, error)
	Set(time.Time) error
}

type publishConn interface {
	Publish(subj string, data []byte) error
}

// NATS publishes alarm events and answers time requests.
type NATS struct {
	nc      *nats.Conn
	pub     publishConn
	subject string
	subs    []*nats.Subscription
}

// Connect dials the NATS server at url. Alarm events go to subject, or DefaultSubject when
// it is empty.
func Connect(url, subject string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("rtclock"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			glog.Warningf("publisher: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			glog.Infof("publisher: reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	glog.Infof("publisher: connected to %s", nc.ConnectedUrl())

	p := newNATS(nc, subject)
	p.nc = nc
	return p, nil
}

func newNATS(pub publishConn, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{pub: pub, subject: subject}
}

// AlarmFired publishes the event as JSON.
func (p *NATS) AlarmFired(event *models.AlarmEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.pub.Publish(p.subject, data)
}

// ServeTime answers requests on TimeGetSubject with a TimeReport, and requests on
// TimeSetSubject carrying a SetTime with the TimeReport after the change.
func (p *NATS) ServeTime(svc TimeService) error {
	if p.nc == nil {
		return errors.New("publisher: not connected")
	}

	get, err := p.nc.Subscribe(TimeGetSubject, func(m *nats.Msg) {
		respond(m, timeReport(svc))
	})
	if err != nil {
		return err
	}
	set, err := p.nc.Subscribe(TimeSetSubject, func(m *nats.Msg) {
		respond(m, setTime(svc, m.Data))
	})
	if err != nil {
		get.Unsubscribe()
		return err
	}
	p.subs = append(p.subs, get, set)
	return nil
}

func respond(m *nats.Msg, report *models.TimeReport) {
	data, err := json.Marshal(report)
	if err != nil {
		glog.Errorf("publisher: encode reply on %s: %v", m.Subject, err)
		return
	}
	if m.Reply == "" {
		return
	}
	if err := m.Respond(data); err != nil {
		glog.Warningf("publisher: reply on %s: %v", m.Subject, err)
	}
}

func timeReport(svc TimeService) *models.TimeReport {
	report, err := svc.Status()
	if err != nil {
		return &models.TimeReport{Error: err.Error()}
	}
	return report
}

func setTime(svc TimeService, data []byte) *models.TimeReport {
	req := new(models.SetTime)
	if err := json.Unmarshal(data, req); err != nil {
		return &models.TimeReport{Error: "could not parse time request: " + err.Error()}
	}
	target, err := req.Target()
	if err != nil {
		return &models.TimeReport{Error: err.Error()}
	}
	if err := svc.Set(target); err != nil {
		return &models.TimeReport{Error: err.Error()}
	}
	glog.Infof("publisher: time set to %s over NATS", target.Format(time.RFC3339))
	return timeReport(svc)
}

// Close unsubscribes and closes the connection.
func (p *NATS) Close() {
	for _, sub := range p.subs {
		sub.Unsubscribe()
	}
	if p.nc != nil {
		p.nc.Close()
	}
}
