package notification

import (
	"encoding/xml"
	"fmt"
	"os"
	"sort"
	"strings"

	"ingest-router/internal/common/errors"
	"ingest-router/internal/common/logging"
	"ingest-router/internal/common/validation"
	"ingest-router/internal/decisiontree"
	"ingest-router/internal/localization"
)

type ruleDocument struct {
	XMLName xml.Name      `xml:"notificationRules"`
	Rules   []ruleElement `xml:"rule"`
}

type ruleElement struct {
	EndpointName string         `xml:"endpointName"`
	EndpointType string         `xml:"endpointType"`
	Format       string         `xml:"format"`
	Durable      bool           `xml:"durable"`
	TimeToLiveMs *int           `xml:"timeToLiveMs"`
	Groups       []groupElement `xml:"metadataConstraintGroups>group"`
}

type groupElement struct {
	Constraints []constraintElement `xml:"constraint"`
}

type constraintElement struct {
	Attribute string `xml:"attribute,attr"`
	Value     string `xml:"value,attr"`
}

// Rejection records a rule that failed validation.
type Rejection struct {
	File     string `json:"file"`
	Index    int    `json:"index"`
	Endpoint string `json:"endpoint,omitempty"`
	Reason   string `json:"reason"`
}

// generation is one complete, immutable set of loaded rules. Nothing in it
// changes after Load returns.
type generation struct {
	rules      []*Rule
	routers    map[string]EndpointRouter
	receiveAll []EndpointRouter
	filtered   []EndpointRouter
	tree       *decisiontree.Tree[EndpointRouter]
	files      []localization.File
	rejected   []Rejection
}

func newGeneration() *generation {
	return &generation{
		routers: make(map[string]EndpointRouter),
		tree:    decisiontree.New[EndpointRouter](),
	}
}

// Loader builds generations from the notification directory.
type Loader struct {
	source    localization.Source
	transport Transport
	factory   RouterFactory
	logger    logging.Logger
}

// NewLoader creates a loader. Rules whose endpoint type transport cannot
// deliver are rejected.
func NewLoader(source localization.Source, transport Transport, factory RouterFactory, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Loader{
		source:    source,
		transport: transport,
		factory:   factory,
		logger:    logger,
	}
}

// Load reads every rule file, in file name order, into a new generation.
// Unreadable files and invalid rules are logged and skipped. Failing to list
// the directory or to create a router aborts the load.
func (l *Loader) Load() (*generation, error) {
	files, err := l.source.ListFiles(localization.NotificationDir, ".xml")
	if err != nil {
		return nil, errors.InternalError("failed to list notification files", err)
	}

	gen := newGeneration()
	gen.files = files

	for _, file := range files {
		// empty files override base files to remove their rules
		if file.Size == 0 {
			continue
		}

		doc, err := readRuleDocument(file)
		if err != nil {
			l.logger.Error("Unable to load notification rules", err,
				logging.Field{Key: "file", Value: file.Path},
			)
			continue
		}

		for i, el := range doc.Rules {
			rule, err := l.validate(el, file, gen)
			if err != nil {
				l.logger.Error("Notification rule rejected", err,
					logging.Field{Key: "file", Value: file.Path},
					logging.Field{Key: "index", Value: i},
				)
				gen.rejected = append(gen.rejected, Rejection{
					File:     file.Path,
					Index:    i,
					Endpoint: strings.TrimSpace(el.EndpointName),
					Reason:   err.Error(),
				})
				continue
			}

			router, err := l.factory(rule)
			if err != nil {
				return nil, errors.InternalError("failed to create router for endpoint "+rule.EndpointName, err)
			}
			gen.add(rule, router)
		}
	}

	gen.tree.RebuildTree()
	return gen, nil
}

func readRuleDocument(file localization.File) (*ruleDocument, error) {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, err
	}

	var doc ruleDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid notification rules in %s: %w", file.Name, err)
	}
	return &doc, nil
}

// validate turns one rule element into a Rule. Warnings are logged and do
// not reject the rule.
func (l *Loader) validate(el ruleElement, file localization.File, gen *generation) (*Rule, error) {
	name := strings.TrimSpace(el.EndpointName)
	if name == "" {
		return nil, errors.ValidationError("endpointName is required")
	}

	v := validation.NewValidatorWithPrefix("endpoint " + name)
	if _, exists := gen.routers[name]; exists {
		return nil, errors.ValidationError(fmt.Sprintf("endpoint %s: endpointName is already in use", name))
	}

	endpointType := EndpointType(strings.ToUpper(strings.TrimSpace(el.EndpointType)))
	if endpointType == "" {
		return nil, errors.ValidationError(fmt.Sprintf(
			"endpoint %s: missing required field endpointType; %s", name, validCombinations()))
	}
	v.RequireOneOf(string(endpointType), typeNames(), "endpointType")

	format := Format(strings.ToUpper(strings.TrimSpace(el.Format)))
	if format == "" {
		format = RawIdentifier
	}
	v.RequireOneOf(string(format), []string{string(RawIdentifier), string(FullRecord)}, "format")

	v.ValidateIf(format == FullRecord && endpointType.Queued(), func() error {
		return fmt.Errorf("endpointType %s is invalid for format %s; %s", endpointType, format, validCombinations())
	})
	v.ValidateIf(endpointType.Valid() && l.transport != nil && !l.transport.Supports(endpointType), func() error {
		return fmt.Errorf("no transport is configured for endpointType %s", endpointType)
	})

	groups := make([]map[string]string, 0, len(el.Groups))
	for gi, g := range el.Groups {
		group := make(map[string]string, len(g.Constraints))
		for _, c := range g.Constraints {
			attr := strings.TrimSpace(c.Attribute)
			if attr == "" {
				v.Validate(func() error { return fmt.Errorf("group %d has a constraint without an attribute", gi) })
				continue
			}
			if prev, dup := group[attr]; dup && prev != c.Value {
				v.Validate(func() error {
					return fmt.Errorf("group %d constrains %s to both %q and %q", gi, attr, prev, c.Value)
				})
				continue
			}
			group[attr] = c.Value
		}
		groups = append(groups, group)
	}

	if err := v.Error(); err != nil {
		return nil, err
	}

	rule := &Rule{
		EndpointName:     name,
		EndpointType:     endpointType,
		Format:           format,
		ConstraintGroups: groups,
		Durable:          el.Durable,
		TimeToLiveMs:     DefaultTimeToLiveMs,
		Source:           file.Path,
	}
	if el.TimeToLiveMs != nil {
		rule.TimeToLiveMs = *el.TimeToLiveMs
	}

	if rule.Durable && endpointType != Queue {
		l.logger.Warn("Durable setting is only valid on QUEUE endpoints",
			logging.Field{Key: "endpoint", Value: name},
			logging.Field{Key: "endpoint_type", Value: string(endpointType)},
		)
	}
	if endpointType.Queued() && rule.TimeToLiveMs < 0 {
		l.logger.Warn("Invalid time to live, using default",
			logging.Field{Key: "endpoint", Value: name},
			logging.Field{Key: "time_to_live_ms", Value: rule.TimeToLiveMs},
			logging.Field{Key: "default_ms", Value: DefaultTimeToLiveMs},
		)
		rule.TimeToLiveMs = DefaultTimeToLiveMs
	}

	return rule, nil
}

func typeNames() []string {
	names := make([]string, len(EndpointTypes))
	for i, t := range EndpointTypes {
		names[i] = string(t)
	}
	return names
}

func (g *generation) add(rule *Rule, router EndpointRouter) {
	g.rules = append(g.rules, rule)
	g.routers[rule.EndpointName] = router

	if rule.ReceiveAll() {
		g.receiveAll = append(g.receiveAll, router)
		return
	}
	for _, group := range rule.ConstraintGroups {
		g.tree.InsertCriteria(group, router)
	}
	g.filtered = append(g.filtered, router)
}

// endpointNames returns the accepted endpoint names in sorted order.
func (g *generation) endpointNames() []string {
	names := make([]string, 0, len(g.routers))
	for name := range g.routers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
