// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package filtergraph

import (
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-media-pipeline/internal/core/model"
)

// Overlay defaults.
const (
	DefaultVideoOverlayWidth = 30.0
	DefaultImageOverlayWidth = 80.0
	DefaultTextWindow        = 5.0
	DefaultTextColor         = "white"
	DefaultTextBackground    = "black@0.5"
	DefaultFontName          = "Arial"
)

// Layer is an overlay with its media source resolved to a local file.
type Layer struct {
	model.Overlay
	Path string // Local file for image and video overlays.
}

// AddOverlays composites layers over in: video layers first, then image
// layers, then text layers, each group in caller order. Media layers with
// no resolved Path are skipped. fontFile may be empty, in which case text is
// drawn with DefaultFontName.
func AddOverlays(g *Graph, in Label, layers []Layer, fontFile string) (Label, error) {
	current := in
	var err error
	for _, kind := range []model.OverlayType{model.OverlayVideo, model.OverlayImage} {
		for _, l := range layers {
			if l.Type != kind || l.Path == "" {
				continue
			}
			if current, err = addMediaLayer(g, current, l); err != nil {
				return "", err
			}
		}
	}
	n := 0
	for _, l := range layers {
		if l.Type != model.OverlayText || strings.TrimSpace(l.Text) == "" {
			continue
		}
		if current, err = g.Chain(current, Label(fmt.Sprintf("txt%d", n)), TextFilter(l.Overlay, fontFile)); err != nil {
			return "", err
		}
		n++
	}
	return current, nil
}

func addMediaLayer(g *Graph, current Label, l Layer) (Label, error) {
	var (
		idx     int
		prefix  string
		width   = DefaultVideoOverlayWidth
		overlay Filter
	)
	x := "W*" + Num(valueOr(l.X, 0)/100)
	y := "H*" + Num(valueOr(l.Y, 0)/100)

	if l.Type == model.OverlayVideo {
		idx = g.AddInput(l.Path)
		prefix = "ov"
		overlay = OverlayKeyed(x, y).With("eof_action", "pass")
	} else {
		idx = g.AddInput(l.Path, "-loop", "1")
		prefix = "img"
		width = DefaultImageOverlayWidth
		overlay = OverlayKeyed(x, y).With("shortest", "1")
	}
	if l.Width != nil && *l.Width > 0 {
		width = *l.Width
	}
	if l.StartTime != nil && l.Duration != nil {
		overlay = overlay.EnableBetween(*l.StartTime, *l.StartTime+*l.Duration)
	}

	scaled, err := g.Chain(VideoOf(idx), Label(fmt.Sprintf("%s%d", prefix, idx)), ScaleKeyed("iw*"+Num(width/100), "-1"))
	if err != nil {
		return "", err
	}
	out := Label(fmt.Sprintf("v%d", idx))
	if err := g.Add(Stage{Inputs: []Label{current, scaled}, Filters: []Filter{overlay}, Outputs: []Label{out}}); err != nil {
		return "", err
	}
	return out, nil
}

// TextFilter draws a boxed text overlay. Placement is a percentage of the
// frame; the text is centered on that point.
func TextFilter(o model.Overlay, fontFile string) Filter {
	color := o.Color
	if color == "" {
		color = DefaultTextColor
	}
	bg := o.BackgroundColor
	if bg == "" {
		bg = DefaultTextBackground
	}

	f := DrawText(o.Text)
	if fontFile != "" {
		f = f.With("fontfile", "'"+EscapePath(fontFile)+"'")
	} else {
		f = f.With("font", "'"+DefaultFontName+"'")
	}
	f = f.With("fontcolor", EscapeColor(color)).
		With("fontsize", "h/20").
		With("x", fmt.Sprintf("(w*%s)-(tw/2)", Num(valueOr(o.X, 50)/100))).
		With("y", fmt.Sprintf("(h*%s)-(th/2)", Num(valueOr(o.Y, 85)/100))).
		With("box", "1").
		With("boxcolor", EscapeColor(bg)).
		With("boxborderw", "20")
	if w, ok := o.Window(DefaultTextWindow); ok {
		f = f.EnableBetween(w.Start, w.End)
	}
	return f
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
