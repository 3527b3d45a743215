package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow, color.Bold)
	keyColor     = color.New(color.FgBlue)
)

// printObjects writes object snapshots as a JSON array in JSON mode and as
// indented key/value blocks otherwise.
func printObjects(w io.Writer, objs []*larder.ManagedObject) error {
	snapshots := make([]map[string]any, 0, len(objs))
	for _, o := range objs {
		values, err := o.Values()
		if err != nil {
			return err
		}
		snapshots = append(snapshots, values)
	}

	if flags.jsonMode {
		return printJSON(w, snapshots)
	}
	for i, values := range snapshots {
		headerColor.Fprintf(w, "%s %v\n", objs[i].Entity().Name(), values[model.ObjectIDColumn])
		keys := make([]string, 0, len(values))
		for k := range values {
			if k != model.ObjectIDColumn {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprint(w, "  ")
			keyColor.Fprint(w, k)
			fmt.Fprintf(w, ": %v\n", values[k])
		}
	}
	return nil
}

// printObject writes a single snapshot; JSON mode emits an object, not an array.
func printObject(w io.Writer, o *larder.ManagedObject) error {
	if flags.jsonMode {
		values, err := o.Values()
		if err != nil {
			return err
		}
		return printJSON(w, values)
	}
	return printObjects(w, []*larder.ManagedObject{o})
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func printSuccess(w io.Writer, format string, args ...any) {
	if flags.jsonMode {
		return
	}
	successColor.Fprintf(w, format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warnColor.Fprintf(w, format+"\n", args...)
}
