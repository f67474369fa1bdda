package controllers

import "github.com/rzbill/haywire/pkg/message"

// createReq represents a request to create a queue.
type createReq struct {
	Queue string `json:"queue"`
}

// sendReq represents a request to enqueue a message. Text is a convenience
// for UTF-8 bodies and is ignored when Body is set.
type sendReq struct {
	Queue         string            `json:"queue"`
	Body          []byte            `json:"body"`
	Text          string            `json:"text"`
	Headers       map[string]string `json:"headers"`
	CorrelationID string            `json:"correlationId"`
}

type sendResp struct {
	ID       string `json:"id"`
	Sequence uint64 `json:"sequence"`
}

type browseResp struct {
	Queue    string             `json:"queue"`
	Messages []*message.Message `json:"messages"`
}

type infoResp struct {
	StoreDriver   string `json:"storeDriver"`
	ChannelDriver string `json:"channelDriver"`
	Queues        int    `json:"queues"`
}
