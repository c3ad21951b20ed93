/*
Copyright © 2026 the GridSelect authors.
This file is part of GridSelect.

GridSelect is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GridSelect is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GridSelect.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridselectutil

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/spatialmodel/gridselect"
	"github.com/spatialmodel/gridselect/ncf"
)

// checkSource expands any environment variables in the dataset location
// and checks that it exists.
func checkSource(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("gridselect: no dataset specified; use the --source flag")
	}
	s = os.ExpandEnv(s)
	if _, err := os.Stat(s); err != nil {
		return "", fmt.Errorf("gridselect: dataset %s: %v", s, err)
	}
	return s, nil
}

// summary is the TOML representation of a set of variable statistics.
type summary struct {
	Source    string                     `toml:"source"`
	Variables map[string]variableSummary `toml:"variables"`
}

type variableSummary struct {
	Description string  `toml:"description,omitempty"`
	Units       string  `toml:"units,omitempty"`
	Count       int     `toml:"count"`
	Valid       int     `toml:"valid"`
	Min         float64 `toml:"min"`
	Max         float64 `toml:"max"`
	Mean        float64 `toml:"mean"`
	StdDev      float64 `toml:"stddev"`
}

// writeSummary writes the statistics for the given variables in TOML
// format.
func writeSummary(w io.Writer, f *ncf.File, variables []string, stats map[string]*gridselect.Stats) error {
	s := summary{
		Source:    f.Source(),
		Variables: make(map[string]variableSummary),
	}
	for _, v := range variables {
		st, ok := stats[v]
		if !ok {
			continue
		}
		s.Variables[v] = variableSummary{
			Description: f.Description(v),
			Units:       f.Units(v),
			Count:       st.Count,
			Valid:       st.Valid,
			Min:         st.Min,
			Max:         st.Max,
			Mean:        st.Mean,
			StdDev:      st.StdDev,
		}
	}
	if err := toml.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("gridselect: writing statistics summary: %v", err)
	}
	return nil
}
