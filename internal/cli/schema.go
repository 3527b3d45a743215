package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/pkg/model"
)

type propertyInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default any    `json:"default,omitempty"`
}

type relationshipInfo struct {
	Name      string `json:"name"`
	Target    string `json:"target"`
	To        string `json:"to"`
	Kind      string `json:"kind"`
	Inverse   string `json:"inverse,omitempty"`
	JoinTable string `json:"join_table"`
}

type entityInfo struct {
	Name          string             `json:"name"`
	Plural        string             `json:"plural"`
	Class         string             `json:"class"`
	Properties    []propertyInfo     `json:"properties"`
	Relationships []relationshipInfo `json:"relationships"`
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Describe the entities of the schema document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}
			m, err := model.Load(cfg.ModelFile, cfg.ModelVersion)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			infos := describeModel(m)

			w := cmd.OutOrStdout()
			if flags.jsonMode {
				return printJSON(w, infos)
			}
			fmt.Fprintf(w, "model version %s (%s)\n", m.Version(), m.Source())
			for _, e := range infos {
				headerColor.Fprintf(w, "%s (table %s, class %s)\n", e.Name, e.Plural, e.Class)
				for _, p := range e.Properties {
					fmt.Fprintf(w, "  %-16s %s", p.Name, p.Type)
					if p.Default != nil {
						fmt.Fprintf(w, " = %v", p.Default)
					}
					fmt.Fprintln(w)
				}
				for _, r := range e.Relationships {
					fmt.Fprintf(w, "  %-16s -> %s (%s, %s) join %s", r.Name, r.Target, r.To, r.Kind, r.JoinTable)
					if r.Inverse != "" {
						fmt.Fprintf(w, " inverse %s", r.Inverse)
					}
					fmt.Fprintln(w)
				}
			}
			return nil
		},
	}
}

func describeModel(m *model.Model) []entityInfo {
	infos := make([]entityInfo, 0, len(m.Entities()))
	for _, e := range m.Entities() {
		info := entityInfo{
			Name:          e.Name(),
			Plural:        e.Plural(),
			Class:         e.Class(),
			Properties:    []propertyInfo{},
			Relationships: []relationshipInfo{},
		}
		for _, p := range e.Properties() {
			info.Properties = append(info.Properties, propertyInfo{
				Name:    p.Name(),
				Type:    string(p.Type()),
				Default: p.DefaultValue(),
			})
		}
		for _, r := range e.Relationships() {
			ri := relationshipInfo{
				Name:      r.Name(),
				Target:    r.Target(),
				To:        r.Cardinality().String(),
				Kind:      r.Kind().String(),
				JoinTable: r.TableName(),
			}
			if inv := r.Inverse(); inv != nil {
				ri.Inverse = inv.Name()
			}
			info.Relationships = append(info.Relationships, ri)
		}
		infos = append(infos, info)
	}
	return infos
}
