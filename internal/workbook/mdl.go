package workbook

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/followup/internal/core"
)

// Units whose MDL filenames carry a "349-" prefix instead of "EFW-E-".
var legacyPrefixUnits = map[core.UnitCode]bool{"0835": true, "2737": true}

// ParseSourceName derives the unit column from an MDL filename:
// "3708_EFW-E-MDL-00243-C.xlsx" is unit 3708 labelled "3708_MDL-00243-C".
func ParseSourceName(path string) (core.Column, error) {
	name := strings.TrimSuffix(filepath.Base(path), ".xlsx")
	if len(name) < 4 {
		return core.Column{}, fmt.Errorf("%s: file name must start with the 4-character unit code", filepath.Base(path))
	}
	unit := core.UnitCode(name[:4])
	if legacyPrefixUnits[unit] {
		return core.Column{Unit: unit, Label: strings.ReplaceAll(name, "349-", "")}, nil
	}
	return core.Column{Unit: unit, Label: strings.ReplaceAll(name, "EFW-E-", "")}, nil
}

// findSources lists the xlsx files under dir, recursively, ordered by filename.
func findSources(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		// Excel lock files
		if strings.HasPrefix(name, "~$") {
			return nil
		}
		if strings.EqualFold(filepath.Ext(name), ".xlsx") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(paths, func(a, b string) int {
		return strings.Compare(filepath.Base(a), filepath.Base(b))
	})
	return paths, nil
}

// ReadUnits reads the given kinds from every MDL workbook under dir. Files
// are read in parallel; results and console lines keep filename order.
func (s *Store) ReadUnits(ctx context.Context, dir string, kinds []core.TableDefinition, console core.Console) ([]core.UnitSource, error) {
	paths, err := findSources(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoWorkbooks, dir)
	}

	units := make([]core.UnitSource, len(paths))
	transcripts := make([]core.Transcript, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			u, err := readUnit(path, kinds, &transcripts[i])
			if err != nil {
				return err
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range transcripts {
		for _, line := range transcripts[i].Lines() {
			console.Println(line)
		}
	}
	return units, nil
}

func readUnit(path string, kinds []core.TableDefinition, console core.Console) (core.UnitSource, error) {
	col, err := ParseSourceName(path)
	if err != nil {
		return core.UnitSource{}, err
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return core.UnitSource{}, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	file := filepath.Base(path)
	present := f.GetSheetList()
	cache := make(map[string]core.Sheet)
	missing := make(map[string]bool)

	u := core.UnitSource{Column: col, Path: path, Sets: make(map[string]core.RecordSet, len(kinds))}
	for _, def := range kinds {
		name := def.Info.Sheet
		sh, ok := cache[name]
		if !ok && !missing[name] {
			if !slices.Contains(present, name) {
				fmt.Fprintf(lineWriter{console}, "File %s is missing sheet: %q", file, name)
				missing[name] = true
			} else {
				sh, err = readSheet(f, name)
				if err != nil {
					return core.UnitSource{}, fmt.Errorf("%s: %w", file, err)
				}
				cache[name] = sh
				ok = true
			}
		}
		if !ok {
			u.Sets[def.Info.Key] = core.RecordSet{Kind: def.Info.Key, Column: col}
			continue
		}
		set, err := parseRecordSet(def, col, file, sh, console)
		if err != nil {
			return core.UnitSource{}, err
		}
		u.Sets[def.Info.Key] = set
	}
	return u, nil
}

// parseRecordSet normalizes and filters the rows of one sheet for one kind.
// Status symbols outside the closed set are kept as Anomalous.
func parseRecordSet(def core.TableDefinition, col core.Column, file string, sh core.Sheet, console core.Console) (core.RecordSet, error) {
	idx := make(map[string]int, len(sh.Header))
	for i, h := range sh.Header {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var absent []string
	for _, spec := range def.FieldSpecs {
		if _, ok := idx[spec.Name]; !ok && spec.Required {
			absent = append(absent, spec.Name)
		}
	}
	if len(absent) > 0 {
		return core.RecordSet{}, &core.SchemaMismatchError{
			Source:   fmt.Sprintf("%s [%s]", file, sh.Name),
			Expected: slices.Clone(def.Info.Columns),
			Found:    slices.Clone(sh.Header),
		}
	}

	set := core.RecordSet{Kind: def.Info.Key, Column: col}
	unknown := 0
	for _, row := range sh.Rows {
		fields := make(map[string]string, len(def.FieldSpecs))
		blank := true
		for _, spec := range def.FieldSpecs {
			v := ""
			if i, ok := idx[spec.Name]; ok && i < len(row) {
				v = row[i]
			}
			if spec.Normalizer != nil {
				v = spec.Normalizer(v)
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			fields[spec.Name] = v
		}
		if blank {
			continue
		}
		if def.Filter != nil && !def.Filter(fields) {
			continue
		}

		r := core.Row{
			Key:   make(core.Key, len(def.Info.KeyFields)),
			Attrs: make(map[string]string, len(def.Info.AttrFields)),
		}
		for i, k := range def.Info.KeyFields {
			r.Key[i] = fields[k]
		}
		for _, a := range def.Info.AttrFields {
			r.Attrs[a] = fields[a]
		}
		if def.StatusField != "" {
			st, err := core.ParseStatus(fields[def.StatusField])
			if err != nil {
				unknown++
			}
			r.Status = st
		}
		set.Rows = append(set.Rows, r)
	}

	if unknown > 0 {
		fmt.Fprintf(lineWriter{console}, "%d rows of %s in %s have an unknown %s symbol, kept as %q",
			unknown, def.Info.Label, file, def.StatusField, core.Anomalous.Symbol())
	}
	return set, nil
}

// lineWriter adapts a Console to io.Writer, one line per write.
type lineWriter struct {
	console core.Console
}

func (w lineWriter) Write(p []byte) (int, error) {
	if w.console != nil {
		w.console.Println(strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}
