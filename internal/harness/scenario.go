package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios run a flow of operations over a fixed event and post-fact
// set, then assert on the derived views.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Events is the raw notification event set, normalized on load.
	Events []EventSpec `yaml:"events"`

	// Posts is the post-fact universe. The merge operation merges it
	// into the cache wholesale; the enrich operation treats it as the
	// fetchable remote, so a URI absent here behaves like a deleted post.
	Posts []PostSpec `yaml:"posts,omitempty"`

	// Flow is the ordered operation list.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the views the flow produced.
	Assertions []Assertion `yaml:"assertions"`
}

// EventSpec is one raw notification event in scenario form.
type EventSpec struct {
	Reason  string `yaml:"reason"`
	URI     string `yaml:"uri"`
	Subject string `yaml:"subject,omitempty"`
	Handle  string `yaml:"handle"`
	At      string `yaml:"at"`
	Read    bool   `yaml:"read,omitempty"`
}

// PostSpec is one post fact in scenario form.
type PostSpec struct {
	URI     string `yaml:"uri"`
	Parent  string `yaml:"parent,omitempty"`
	Root    string `yaml:"root,omitempty"`
	Content string `yaml:"content,omitempty"`
}

// FlowStep is one operation in the scenario flow.
type FlowStep struct {
	// Op is the operation name: aggregate, merge, enrich,
	// conversations, or frontier.
	Op string `yaml:"op"`

	// BatchSize overrides the enrichment batch bound for enrich steps.
	// Zero keeps the default.
	BatchSize int `yaml:"batch_size,omitempty"`
}

// Flow operation constants.
const (
	OpAggregate     = "aggregate"
	OpMerge         = "merge"
	OpEnrich        = "enrich"
	OpConversations = "conversations"
	OpFrontier      = "frontier"
)

// Assertion validates one aspect of the derived views.
type Assertion struct {
	// Type selects the assertion: feed_count, cluster, singleton_count,
	// thread_count, thread, frontier_contains, frontier_empty.
	Type string `yaml:"type"`

	// Count is the expected count (feed_count, singleton_count,
	// thread_count).
	Count int `yaml:"count,omitempty"`

	// TargetKey is the expected cluster key (cluster).
	TargetKey string `yaml:"target_key,omitempty"`

	// Size is the expected cluster member count (cluster).
	Size int `yaml:"size,omitempty"`

	// Root is the expected thread root URI (thread).
	Root string `yaml:"root,omitempty"`

	// Replies is the expected reply count; zero skips the check (thread).
	Replies int `yaml:"replies,omitempty"`

	// Participants is the expected exact participant handle list;
	// empty skips the check (thread).
	Participants []string `yaml:"participants,omitempty"`

	// URI is the expected frontier member (frontier_contains).
	URI string `yaml:"uri,omitempty"`
}

// Assertion type constants.
const (
	AssertFeedCount        = "feed_count"
	AssertCluster          = "cluster"
	AssertSingletonCount   = "singleton_count"
	AssertThreadCount      = "thread_count"
	AssertThread           = "thread"
	AssertFrontierContains = "frontier_contains"
	AssertFrontierEmpty    = "frontier_empty"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, e := range s.Events {
		if e.Reason == "" {
			return fmt.Errorf("events[%d]: reason is required", i)
		}
		if e.URI == "" {
			return fmt.Errorf("events[%d]: uri is required", i)
		}
		if e.Handle == "" {
			return fmt.Errorf("events[%d]: handle is required", i)
		}
		if e.At == "" {
			return fmt.Errorf("events[%d]: at is required", i)
		}
	}

	for i, p := range s.Posts {
		if p.URI == "" {
			return fmt.Errorf("posts[%d]: uri is required", i)
		}
	}

	needsPosts := false
	for i, step := range s.Flow {
		switch step.Op {
		case OpAggregate, OpConversations, OpFrontier:
		case OpMerge, OpEnrich:
			needsPosts = true
		default:
			return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
		}
	}
	if needsPosts && len(s.Posts) == 0 {
		return fmt.Errorf("flow uses merge or enrich but posts is empty")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFeedCount, AssertSingletonCount, AssertThreadCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertCluster:
		if a.TargetKey == "" {
			return fmt.Errorf("assertions[%d]: target_key is required for cluster", index)
		}
		if a.Size < 1 {
			return fmt.Errorf("assertions[%d]: size must be positive for cluster", index)
		}
	case AssertThread:
		if a.Root == "" {
			return fmt.Errorf("assertions[%d]: root is required for thread", index)
		}
	case AssertFrontierContains:
		if a.URI == "" {
			return fmt.Errorf("assertions[%d]: uri is required for frontier_contains", index)
		}
	case AssertFrontierEmpty:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
