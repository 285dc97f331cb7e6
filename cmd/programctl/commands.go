package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"program-enrollment/backend/internal/config"
	"program-enrollment/backend/internal/dateutil"
	"program-enrollment/backend/internal/logging"
	"program-enrollment/backend/internal/openmrs"
	"program-enrollment/backend/internal/services"
)

type cli struct {
	out        io.Writer
	configFile string
	dates      *dateutil.Formatter

	// newManager is replaced in tests.
	newManager func(cmd *cobra.Command) (services.ProgramManager, error)
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out, dates: dateutil.New(nil)}
	c.newManager = c.managerFromConfig
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "programctl",
		Short:         "Manage patient program enrollments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "Path to config file")

	root.AddCommand(
		c.programsCmd(),
		c.enrollmentsCmd(),
		c.attributeTypesCmd(),
		c.enrollCmd(),
		c.transitionCmd(),
		c.endCmd(),
		c.deleteStateCmd(),
	)
	return root
}

func (c *cli) managerFromConfig(cmd *cobra.Command) (services.ProgramManager, error) {
	cfg, err := config.LoadConfig(c.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, true)
	return services.NewFromConfig(cmd.Context(), cfg, logger), nil
}

func (c *cli) programsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "programs",
		Short: "List active program definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := c.newManager(cmd)
			if err != nil {
				return err
			}
			programs, err := pm.GetAllPrograms(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(programs)
		},
	}
}

func (c *cli) enrollmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrollments <patient>",
		Short: "List a patient's active and ended programs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := c.newManager(cmd)
			if err != nil {
				return err
			}
			grouped, err := pm.GetPatientPrograms(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(grouped)
		},
	}
}

func (c *cli) attributeTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attribute-types",
		Short: "List program attribute types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := c.newManager(cmd)
			if err != nil {
				return err
			}
			types, err := pm.GetProgramAttributeTypes(cmd.Context())
			if err != nil {
				return err
			}
			return c.printJSON(types)
		},
	}
}

func (c *cli) enrollCmd() *cobra.Command {
	var (
		patient, program, date, state string
		attrs                         []string
	)
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Enroll a patient into a program",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			enrolled, err := c.parseDate(date, "date")
			if err != nil {
				return err
			}
			values, err := parseAttributes(attrs)
			if err != nil {
				return err
			}

			pm, err := c.newManager(cmd)
			if err != nil {
				return err
			}
			req := services.EnrollmentRequest{
				PatientID:      patient,
				ProgramID:      program,
				EnrollmentDate: enrolled,
				StateID:        state,
			}
			if len(values) > 0 {
				types, err := pm.GetProgramAttributeTypes(cmd.Context())
				if err != nil {
					return err
				}
				req.AttributeValues = values
				req.AttributeTypes = types
			}
			resp, err := pm.EnrollPatientToAProgram(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.printResponse(resp)
		},
	}
	cmd.Flags().StringVar(&patient, "patient", "", "Patient UUID")
	cmd.Flags().StringVar(&program, "program", "", "Program UUID")
	cmd.Flags().StringVar(&date, "date", "", "Enrollment date")
	cmd.Flags().StringVar(&state, "state", "", "Initial state UUID")
	cmd.Flags().StringArrayVar(&attrs, "attr", nil, "Attribute value as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("patient")
	_ = cmd.MarkFlagRequired("program")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (c *cli) transitionCmd() *cobra.Command {
	var state, date, current string
	cmd := &cobra.Command{
		Use:   "transition <enrollment>",
		Short: "Move an enrollment into a new workflow state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			onDate, err := c.parseDate(date, "date")
			if err != nil {
				return err
			}
			pm, err := c.newManager(cmd)
			if err != nil {
				return err
			}
			resp, err := pm.SavePatientProgram(cmd.Context(), args[0], state, onDate, current)
			if err != nil {
				return err
			}
			return c.printResponse(resp)
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "Target state UUID; omit to send no state change")
	cmd.Flags().StringVar(&date, "date", "", "Start date of the new state")
	cmd.Flags().StringVar(&current, "current", "", "State record UUID being replaced")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (c *cli) endCmd() *cobra.Command {
	var date, outcome string
	cmd := &cobra.Command{
		Use:   "end <enrollment>",
		Short: "Complete an enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			completed, err := c.parseDate(date, "date")
			if err != nil {
				return err
			}
			pm, err := c.newManager(cmd)
			if err != nil {
				return err
			}
			resp, err := pm.EndPatientProgram(cmd.Context(), args[0], completed, outcome)
			if err != nil {
				return err
			}
			return c.printResponse(resp)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Completion date")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Outcome concept UUID")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (c *cli) deleteStateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-state <enrollment> <state-record>",
		Short: "Purge a state record from an enrollment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := c.newManager(cmd)
			if err != nil {
				return err
			}
			resp, err := pm.DeletePatientState(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return c.printResponse(resp)
		},
	}
}

func (c *cli) parseDate(value, flag string) (time.Time, error) {
	t, err := c.dates.Parse(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	if t == nil {
		return time.Time{}, fmt.Errorf("--%s is required", flag)
	}
	return *t, nil
}

func parseAttributes(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --attr %q, want name=value", pair)
		}
		values[name] = value
	}
	return values, nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printResponse(resp *openmrs.Response) error {
	if resp == nil {
		return errors.New("no response from backend")
	}
	if len(resp.Body) == 0 {
		_, err := fmt.Fprintf(c.out, "{\"status\": %d}\n", resp.StatusCode)
		return err
	}
	return c.printJSON(resp.Body)
}
