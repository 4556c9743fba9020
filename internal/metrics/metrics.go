// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the gateway's domain Prometheus metrics: session
// lifecycle, per-transport attach/detach activity, and codec throughput.
// Ingress-level metrics (HTTP status/duration/size) live in
// internal/gateway/middleware instead, since they're mounted per-route
// rather than per-domain-event.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks the number of sessions currently live in the
	// store (created and not yet expired or explicitly removed).
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gateway",
		Name:      "sessions_active",
		Help:      "Number of sessions currently tracked by the session store",
	})

	// SessionsCreatedTotal counts every session the store has minted.
	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "sessions_created_total",
		Help:      "Total number of sessions created",
	})

	// SessionsExpiredTotal counts sessions removed by the expiry sweeper,
	// as opposed to an explicit client-initiated close.
	SessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "sessions_expired_total",
		Help:      "Total number of sessions removed by the expiry sweeper",
	})

	// SessionsClosedTotal counts sessions removed through session.Store.Remove,
	// labeled by initiator; the store labels every such removal "explicit".
	SessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "sessions_closed_total",
		Help:      "Total number of sessions closed, by initiator",
	}, []string{"initiator"})
)

var (
	// TransportAttachTotal counts successful transport attachments, by
	// protocol name, each time a polling/streaming connection binds to a
	// session.
	TransportAttachTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "transport_attach_total",
		Help:      "Total number of transport attachments, by protocol",
	}, []string{"protocol"})

	// TransportDetachTotal counts transport detachments, by protocol and
	// reason (timeout, client disconnect, session closed).
	TransportDetachTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "transport_detach_total",
		Help:      "Total number of transport detachments, by protocol and reason",
	}, []string{"protocol", "reason"})

	// TransportDoubleBindTotal counts rejected attach attempts against a
	// session that already has a live transport bound.
	TransportDoubleBindTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "transport_double_bind_total",
		Help:      "Total number of attach attempts rejected because a transport was already bound",
	}, []string{"protocol"})
)

var (
	// FramesEncodedTotal counts wire frames produced, by kind (text,
	// heartbeat).
	FramesEncodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "codec_frames_encoded_total",
		Help:      "Total number of wire frames encoded, by kind",
	}, []string{"kind"})

	// FramesDecodedTotal counts wire frames successfully parsed from
	// inbound payloads, by kind.
	FramesDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "codec_frames_decoded_total",
		Help:      "Total number of wire frames decoded, by kind",
	}, []string{"kind"})

	// CodecErrorsTotal counts frame decode failures (malformed delimiter,
	// missing length, invalid length).
	CodecErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gateway",
		Name:      "codec_errors_total",
		Help:      "Total number of wire frame decode errors",
	})
)
