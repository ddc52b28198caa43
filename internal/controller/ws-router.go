package controller

import (
	"github.com/sharetube/roomsync/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw(), c.rateLimitWSMw())
	mux.HandleError(c.handleWSError)

	// playback and chat
	wsrouter.Handle(mux, "PROPOSE", c.handlePropose)

	// presence
	wsrouter.Handle(mux, "ACK", c.handleAck)
	wsrouter.Handle(mux, "LEAVE", c.handleLeave)
	wsrouter.Handle(mux, "PROMOTE", c.handlePromote)

	// clock
	wsrouter.Handle(mux, "PING", c.handlePing)

	return mux
}
