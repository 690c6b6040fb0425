package app

import (
	"context"
	"errors"

	"github.com/skobkin/groundlink/internal/link"
	"github.com/skobkin/groundlink/internal/mavlink"
)

// streamedMessages are the messages asked for by SET_MESSAGE_INTERVAL. They
// cover every telemetry group.
var streamedMessages = []uint32{
	mavlink.MsgIDSysStatus,
	mavlink.MsgIDGPSRawInt,
	mavlink.MsgIDAttitude,
	mavlink.MsgIDGlobalPositionInt,
	mavlink.MsgIDVFRHUD,
	mavlink.MsgIDAltitude,
	mavlink.MsgIDBatteryStatus,
}

// CommandSender is the part of the link manager stream requests need.
type CommandSender interface {
	Vehicle() (mavlink.Sender, bool)
	SendCommand(ctx context.Context, msg mavlink.Message) error
}

// StreamRequests builds the messages that ask vehicle to stream telemetry at
// rateHz: the legacy REQUEST_DATA_STREAM for all streams, understood by
// ArduPilot, followed by one SET_MESSAGE_INTERVAL per telemetry message.
func StreamRequests(vehicle mavlink.Sender, rateHz int) []mavlink.Message {
	if rateHz <= 0 {
		return nil
	}
	intervalUs := float32(1e6 / float64(rateHz))

	msgs := make([]mavlink.Message, 0, len(streamedMessages)+1)
	msgs = append(msgs, mavlink.RequestDataStream{
		TargetSystem:    vehicle.SystemID,
		TargetComponent: vehicle.ComponentID,
		StreamID:        0,
		RateHz:          uint16(rateHz),
		Start:           true,
	})
	for _, id := range streamedMessages {
		msgs = append(msgs, mavlink.CommandLong{
			TargetSystem:    vehicle.SystemID,
			TargetComponent: vehicle.ComponentID,
			Command:         mavlink.MavCmdSetMessageInterval,
			Params:          [7]float32{float32(id), intervalUs},
		})
	}

	return msgs
}

// RequestStreams sends the stream requests to the current vehicle. Every
// message is attempted once; the returned error joins the failures.
func RequestStreams(ctx context.Context, sender CommandSender, rateHz int) error {
	vehicle, ok := sender.Vehicle()
	if !ok {
		return link.ErrNotConnected
	}

	var errs []error
	for _, msg := range StreamRequests(vehicle, rateHz) {
		if err := sender.SendCommand(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
