package crawl

import (
	"encoding/json"
	"fmt"
)

// Topic names the four pipeline stages. Each topic carries exactly one
// payload shape, JSON-encoded on the wire.
type Topic string

// Pipeline topics, in dependency order.
const (
	TopicInitCrawl       Topic = "init_crawl"
	TopicCrawlLinks      Topic = "crawl_links"
	TopicCrawlLinksBatch Topic = "crawl_links_batch"
	TopicInsertNodes     Topic = "insert_nodes"
)

// Topics lists every pipeline topic, in processing order.
func Topics() []Topic {
	return []Topic{TopicInitCrawl, TopicCrawlLinks, TopicCrawlLinksBatch, TopicInsertNodes}
}

// Message is the closed set of payloads the coordinator handles. Dispatch is
// an exhaustive type switch, so adding a stage is a compile-checked change.
type Message interface {
	Topic() Topic
}

// InitCrawl is the pipeline entry point: one accepted crawl request.
type InitCrawl struct {
	URL     string       `json:"url"`
	Options CrawlOptions `json:"options"`
}

// Topic implements Message.
func (InitCrawl) Topic() Topic { return TopicInitCrawl }

// CrawlLinks carries a task's current candidate frontier.
type CrawlLinks struct {
	TaskID  string   `json:"taskId"`
	BaseURL string   `json:"baseUrl"`
	Links   []string `json:"links"`
}

// Topic implements Message.
func (CrawlLinks) Topic() Topic { return TopicCrawlLinks }

// CrawlLinksBatch is one bounded slice of the frontier, ready for the pool.
type CrawlLinksBatch struct {
	TaskID       string   `json:"taskId"`
	BaseURL      string   `json:"baseUrl"`
	LinksToVisit []string `json:"linksToVisit"`
}

// Topic implements Message.
func (CrawlLinksBatch) Topic() Topic { return TopicCrawlLinksBatch }

// InsertNodes hands a batch's successful records to the graph store.
type InsertNodes struct {
	TaskID  string    `json:"taskId"`
	BaseURL string    `json:"baseUrl"`
	Nodes   []Webpage `json:"nodes"`
}

// Topic implements Message.
func (InsertNodes) Topic() Topic { return TopicInsertNodes }

// DecodeMessage unmarshals a raw payload received on the given topic into its
// concrete message type. Unknown topics and malformed payloads are errors;
// consumers drop and log them rather than crash.
func DecodeMessage(topic Topic, data []byte) (Message, error) {
	var (
		msg Message
		err error
	)
	switch topic {
	case TopicInitCrawl:
		var m InitCrawl
		err = json.Unmarshal(data, &m)
		msg = m
	case TopicCrawlLinks:
		var m CrawlLinks
		err = json.Unmarshal(data, &m)
		msg = m
	case TopicCrawlLinksBatch:
		var m CrawlLinksBatch
		err = json.Unmarshal(data, &m)
		msg = m
	case TopicInsertNodes:
		var m InsertNodes
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, fmt.Errorf("unknown topic %q", topic)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", topic, err)
	}
	return msg, nil
}

// EncodeMessage marshals a message payload for the wire.
func EncodeMessage(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", msg.Topic(), err)
	}
	return data, nil
}
