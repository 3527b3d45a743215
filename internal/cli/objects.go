package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// newObjectArg is accepted by set in place of an objectID.
const newObjectArg = "new"

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import an XML object graph and save it",
		Long: `Import parses an XML document whose root children are entity elements,
creates an object for each element and its nested relationship elements,
and saves the result.

Example:
  larder import people.xml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			count := 0
			_, err = s.ctx.ParseObjectsFromFile(args[0], func(o *larder.ManagedObject) {
				count++
				s.logger.Debugw("object parsed", "entity", o.Entity().Name())
			})
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			if _, err := s.save(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "imported %d objects from %s", count, args[0])
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "list <entity>",
		Short: "List objects of an entity",
		Long: `List prints every object of the entity, optionally filtered by an SQL
condition over the entity's columns.

Example:
  larder list Person
  larder list People --where "\"age\" > 30"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			e, err := s.entity(args[0])
			if err != nil {
				return err
			}
			objs, err := s.ctx.Fetch(e, where)
			if err != nil {
				return err
			}
			return printObjects(cmd.OutOrStdout(), objs)
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "SQL condition selecting rows")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity> <id>",
		Short: "Get an object by objectID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			e, err := s.entity(args[0])
			if err != nil {
				return err
			}
			o, err := s.object(e, args[1])
			if err != nil {
				return err
			}
			return printObject(cmd.OutOrStdout(), o)
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <entity> <id|new> <property=value>...",
		Short: "Create an object or update its properties",
		Long: `Set assigns property values and saves. Use "new" as the id to create an
object. Values are converted to the property type; "null" clears a value.

Example:
  larder set Person new name=Ann age=41
  larder set Person 3 active=true`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			e, err := s.entity(args[0])
			if err != nil {
				return err
			}
			var o *larder.ManagedObject
			if args[1] == newObjectArg {
				o = s.ctx.NewObject(e)
			} else if o, err = s.object(e, args[1]); err != nil {
				return err
			}

			for _, assignment := range args[2:] {
				if err := assign(o, assignment); err != nil {
					return err
				}
			}
			if _, err := s.save(); err != nil {
				return err
			}
			return printObject(cmd.OutOrStdout(), o)
		},
	}
}

// assign applies one "property=value" argument to o.
func assign(o *larder.ManagedObject, assignment string) error {
	name, raw, ok := strings.Cut(assignment, "=")
	if !ok || name == "" {
		return fmt.Errorf("invalid assignment %q: want property=value", assignment)
	}
	p := o.Entity().Property(name)
	if p == nil {
		return &types.ManagedObjectError{Entity: o.Entity().Name(), Attribute: name, Msg: "no such property"}
	}
	if raw == "null" {
		return o.Set(p, nil)
	}
	v, err := model.Coerce(p.Type(), raw)
	if err != nil {
		return &types.InvalidDataTypeError{Attribute: p.String(), Type: p.Type(), Value: raw, Err: err}
	}
	return o.Set(p, v)
}

func newLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link <entity> <id> <relationship> <id>",
		Short: "Add an object to a relationship",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelationshipEdit(cmd, args, true)
		},
	}
}

func newUnlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <entity> <id> <relationship> <id>",
		Short: "Remove an object from a relationship",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelationshipEdit(cmd, args, false)
		},
	}
}

func runRelationshipEdit(cmd *cobra.Command, args []string, add bool) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.close()

	e, err := s.entity(args[0])
	if err != nil {
		return err
	}
	o, err := s.object(e, args[1])
	if err != nil {
		return err
	}
	rel := e.Relationship(args[2])
	if rel == nil {
		return &types.ManagedObjectError{Entity: e.Name(), Attribute: args[2], Msg: "no such relationship"}
	}
	target, err := s.object(rel.Destination(), args[3])
	if err != nil {
		return err
	}

	if add {
		err = o.AddTo(rel, target)
	} else {
		err = o.RemoveFrom(rel, target)
	}
	if err != nil {
		return err
	}
	if _, err := s.save(); err != nil {
		return err
	}
	return printObject(cmd.OutOrStdout(), o)
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity> <id>",
		Short: "Delete an object and its links",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.close()

			e, err := s.entity(args[0])
			if err != nil {
				return err
			}
			o, err := s.object(e, args[1])
			if err != nil {
				return err
			}
			if err := s.ctx.Delete(o); err != nil {
				return err
			}
			if _, err := s.save(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "deleted %s %s", e.Name(), args[1])
			return nil
		},
	}
}
