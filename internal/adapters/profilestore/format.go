package profilestore

import (
	"fmt"

	"github.com/okian/padmap/internal/domain/input"
	"github.com/okian/padmap/internal/domain/macro"
	"github.com/okian/padmap/internal/domain/mapping"
)

// profileDoc is the persisted profile. Rule order in the document is rule
// precedence.
type profileDoc struct {
	Name  string    `json:"name" yaml:"name" toml:"name"`
	Rules []ruleDoc `json:"rules" yaml:"rules" toml:"rules"`
}

type ruleDoc struct {
	Condition *conditionDoc `json:"condition" yaml:"condition" toml:"condition"`
	Actions   []actionDoc   `json:"actions" yaml:"actions" toml:"actions"`
}

type conditionDoc struct {
	Kind     string  `json:"kind" yaml:"kind" toml:"kind"`
	TargetID *uint16 `json:"target_id" yaml:"target_id" toml:"target_id"`
}

// actionDoc is a tagged action record. Type selects which of the other
// fields apply.
type actionDoc struct {
	Type    string `json:"type" yaml:"type" toml:"type"`
	Button  string `json:"button,omitempty" yaml:"button,omitempty" toml:"button,omitempty"`
	Pressed *bool  `json:"pressed,omitempty" yaml:"pressed,omitempty" toml:"pressed,omitempty"`
	Axis    string `json:"axis,omitempty" yaml:"axis,omitempty" toml:"axis,omitempty"`
	Value   *int   `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
	Source  bool   `json:"source,omitempty" yaml:"source,omitempty" toml:"source,omitempty"`
	Macro   string `json:"macro,omitempty" yaml:"macro,omitempty" toml:"macro,omitempty"`
}

type macroFileDoc struct {
	Macros []macroDoc `json:"macros" yaml:"macros" toml:"macros"`
}

type macroDoc struct {
	Name    string      `json:"name" yaml:"name" toml:"name"`
	Actions []actionDoc `json:"actions" yaml:"actions" toml:"actions"`
}

func toProfileDoc(p mapping.Profile) (profileDoc, error) {
	doc := profileDoc{Name: p.Name, Rules: make([]ruleDoc, 0, len(p.Rules))}
	for i, r := range p.Rules {
		if r.Condition == nil {
			return profileDoc{}, fmt.Errorf("%w: rule %d has no condition", ErrInvalidProfile, i)
		}
		id := r.Condition.TargetID()
		rd := ruleDoc{
			Condition: &conditionDoc{Kind: r.Condition.Kind().String(), TargetID: &id},
			Actions:   make([]actionDoc, 0, len(r.Actions)),
		}
		for j, a := range r.Actions {
			ad, err := toActionDoc(a)
			if err != nil {
				return profileDoc{}, fmt.Errorf("rule %d action %d: %w", i, j, err)
			}
			rd.Actions = append(rd.Actions, ad)
		}
		doc.Rules = append(doc.Rules, rd)
	}
	return doc, nil
}

func toActionDoc(a mapping.Action) (actionDoc, error) {
	switch act := a.(type) {
	case mapping.SetVirtualButton:
		pressed := act.PressedOverride
		return actionDoc{Type: string(mapping.ActionSetVirtualButton), Button: act.Button.String(), Pressed: &pressed}, nil
	case mapping.SetVirtualAxis:
		ad := actionDoc{Type: string(mapping.ActionSetVirtualAxis), Axis: act.Axis.String()}
		if act.Value.IsSource() {
			ad.Source = true
		} else {
			v := act.Value.Int()
			ad.Value = &v
		}
		return ad, nil
	case mapping.RunMacro:
		return actionDoc{Type: string(mapping.ActionRunMacro), Macro: act.Name}, nil
	default:
		return actionDoc{}, fmt.Errorf("%w: unknown action %T", ErrInvalidProfile, a)
	}
}

func fromProfileDoc(doc profileDoc) (mapping.Profile, error) {
	if doc.Name == "" {
		return mapping.Profile{}, fmt.Errorf("%w: missing name", ErrMalformedData)
	}
	p := mapping.Profile{Name: doc.Name}
	for i, rd := range doc.Rules {
		r, err := fromRuleDoc(rd)
		if err != nil {
			return mapping.Profile{}, fmt.Errorf("rule %d: %w", i, err)
		}
		p.Rules = append(p.Rules, r)
	}
	if err := p.Validate(); err != nil {
		return mapping.Profile{}, fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	return p, nil
}

func fromRuleDoc(rd ruleDoc) (mapping.Rule, error) {
	if rd.Condition == nil {
		return mapping.Rule{}, fmt.Errorf("%w: missing condition", ErrMalformedData)
	}
	if rd.Condition.TargetID == nil {
		return mapping.Rule{}, fmt.Errorf("%w: missing condition target_id", ErrMalformedData)
	}
	kind, err := input.ParseKind(rd.Condition.Kind)
	if err != nil {
		return mapping.Rule{}, fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	cond, err := mapping.NewCondition(kind, *rd.Condition.TargetID)
	if err != nil {
		return mapping.Rule{}, fmt.Errorf("%w: %w", ErrMalformedData, err)
	}
	actions, err := fromActionDocs(rd.Actions)
	if err != nil {
		return mapping.Rule{}, err
	}
	return mapping.NewRule(cond, actions...), nil
}

func fromActionDocs(docs []actionDoc) ([]mapping.Action, error) {
	actions := make([]mapping.Action, 0, len(docs))
	for i, ad := range docs {
		a, err := fromActionDoc(ad)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func fromActionDoc(ad actionDoc) (mapping.Action, error) {
	switch mapping.ActionKind(ad.Type) {
	case mapping.ActionSetVirtualButton:
		b, err := mapping.ParseVirtualButton(ad.Button)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedData, err)
		}
		act := mapping.SetVirtualButton{Button: b}
		if ad.Pressed != nil {
			act.PressedOverride = *ad.Pressed
		}
		return act, nil
	case mapping.ActionSetVirtualAxis:
		a, err := mapping.ParseVirtualAxis(ad.Axis)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedData, err)
		}
		switch {
		case ad.Source && ad.Value != nil:
			return nil, fmt.Errorf("%w: %s sets both value and source", ErrMalformedData, a)
		case ad.Source:
			return mapping.SetVirtualAxis{Axis: a, Value: mapping.UseSource()}, nil
		case ad.Value != nil:
			return mapping.SetVirtualAxis{Axis: a, Value: mapping.Literal(*ad.Value)}, nil
		default:
			return nil, fmt.Errorf("%w: %s needs value or source", ErrMalformedData, a)
		}
	case mapping.ActionRunMacro:
		if ad.Macro == "" {
			return nil, fmt.Errorf("%w: run_macro without macro", ErrMalformedData)
		}
		return mapping.RunMacro{Name: ad.Macro}, nil
	case "":
		return nil, fmt.Errorf("%w: action without type", ErrMalformedData)
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrMalformedData, ad.Type)
	}
}

func fromMacroFileDoc(doc macroFileDoc) ([]macro.Macro, error) {
	out := make([]macro.Macro, 0, len(doc.Macros))
	for i, md := range doc.Macros {
		if md.Name == "" {
			return nil, fmt.Errorf("%w: macro %d has no name", ErrMalformedData, i)
		}
		actions, err := fromActionDocs(md.Actions)
		if err != nil {
			return nil, fmt.Errorf("macro %q: %w", md.Name, err)
		}
		out = append(out, macro.Macro{Name: md.Name, Actions: actions})
	}
	return out, nil
}

// Encode renders p in the format named by ext (".json", ".yaml", ".toml").
func Encode(ext string, p mapping.Profile) ([]byte, error) {
	c, err := codecFor("profile" + ext)
	if err != nil {
		return nil, err
	}
	doc, err := toProfileDoc(p)
	if err != nil {
		return nil, err
	}
	return c.encode(doc)
}

// Decode parses a profile document in the format named by ext. Errors carry
// the same classes as Load.
func Decode(ext string, data []byte) (mapping.Profile, error) {
	c, err := codecFor("profile" + ext)
	if err != nil {
		return mapping.Profile{}, err
	}
	var doc profileDoc
	if err := c.decode(data, &doc); err != nil {
		return mapping.Profile{}, err
	}
	return fromProfileDoc(doc)
}
