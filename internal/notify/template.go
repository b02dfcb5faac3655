package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/bayline/shop-sync-service/internal/domain/event"
	"github.com/bayline/shop-sync-service/internal/domain/model"
)

// Rendered carries the channel-appropriate forms of one event. Both derive
// from the same StateEvent payload, so SMS and email can never present
// contradictory information.
type Rendered struct {
	SMSText      string
	EmailSubject string
	EmailHTML    string
}

var smsTemplates = texttemplate.Must(texttemplate.New("sms").Parse(`
{{- define "appointment_confirmed" -}}
Your appointment {{.AppointmentID}} for {{.Vehicle}} is confirmed.
{{- end -}}
{{- define "queue_status_changed" -}}
Update on {{.AppointmentID}}: {{.Status}}, position {{.Position}}.
{{- end -}}
{{- define "pickup_ready" -}}
{{.Vehicle}} is ready for pickup (appointment {{.AppointmentID}}).
{{- end -}}
{{- define "low_stock_alert" -}}
Low stock: {{.Name}} ({{.SKU}}) at {{.Quantity}}, minimum {{.Minimum}}.
{{- end -}}
{{- define "service_recommended" -}}
Recommended for {{.Vehicle}}: {{.Service}}.
{{- end -}}`))

var emailTemplates = htmltemplate.Must(htmltemplate.New("email").Parse(`
{{- define "appointment_confirmed" -}}
<h2>Appointment confirmed</h2>
<p>Your appointment <strong>{{.AppointmentID}}</strong> for {{.Vehicle}} is confirmed.</p>
{{- end -}}
{{- define "queue_status_changed" -}}
<h2>Service update</h2>
<p>Appointment <strong>{{.AppointmentID}}</strong> is now <em>{{.Status}}</em>, position {{.Position}} in the queue.</p>
{{- end -}}
{{- define "pickup_ready" -}}
<h2>Ready for pickup</h2>
<p>{{.Vehicle}} is ready. Reference: <strong>{{.AppointmentID}}</strong>.</p>
{{- end -}}
{{- define "low_stock_alert" -}}
<h2>Low stock alert</h2>
<p>{{.Name}} ({{.SKU}}) is down to {{.Quantity}} units; minimum is {{.Minimum}}.</p>
{{- end -}}
{{- define "service_recommended" -}}
<h2>Service recommendation</h2>
<p>We recommend <strong>{{.Service}}</strong> for {{.Vehicle}}.</p>
<p>{{.Notes}}</p>
{{- end -}}`))

var emailSubjects = map[event.Kind]string{
	event.AppointmentConfirmed: "Your appointment is confirmed",
	event.QueueStatusChanged:   "Service status update",
	event.PickupReady:          "Your vehicle is ready for pickup",
	event.LowStockAlert:        "Inventory low-stock alert",
	event.ServiceRecommended:   "Recommended service for your vehicle",
}

// Render selects the template by event kind. Kinds without a notification
// template (chat, presence, system frames) return ok=false; that event is
// simply not an offline-notifiable one.
func Render(ev event.Eventer) (Rendered, bool, error) {
	kind := ev.GetKind()
	name := kind.Wire()

	switch kind {
	case event.AppointmentConfirmed, event.QueueStatusChanged, event.PickupReady,
		event.LowStockAlert, event.ServiceRecommended:
	default:
		return Rendered{}, false, nil
	}

	data, err := templateData(kind, ev.GetPayload())
	if err != nil {
		return Rendered{}, false, err
	}

	var sms bytes.Buffer
	if err := smsTemplates.ExecuteTemplate(&sms, name, data); err != nil {
		return Rendered{}, false, fmt.Errorf("render sms %s: %w", name, err)
	}
	var email bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&email, name, data); err != nil {
		return Rendered{}, false, fmt.Errorf("render email %s: %w", name, err)
	}

	return Rendered{
		SMSText:      sms.String(),
		EmailSubject: emailSubjects[kind],
		EmailHTML:    email.String(),
	}, true, nil
}

// templateData validates that the payload matches the kind before rendering.
func templateData(kind event.Kind, payload any) (any, error) {
	var ok bool
	switch kind {
	case event.AppointmentConfirmed, event.PickupReady:
		_, ok = payload.(*model.AppointmentNotice)
	case event.QueueStatusChanged:
		_, ok = payload.(*model.QueueEntry)
	case event.LowStockAlert:
		_, ok = payload.(*model.StockItem)
	case event.ServiceRecommended:
		_, ok = payload.(*model.Recommendation)
	}
	if !ok {
		return nil, fmt.Errorf("payload %T does not match event kind %s", payload, kind.Wire())
	}
	return payload, nil
}
