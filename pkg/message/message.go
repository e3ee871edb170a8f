/*
Copyright 2024 The Skynet Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package message builds client-renderable chat messages: a message is an
// ordered list of styled text components, serialized as the proxies expect.
package message

// Color names the built-in client palette. A custom hex value can be passed
// directly as a Color.
type Color string

const (
	Black       Color = "Black"
	DarkBlue    Color = "DarkBlue"
	DarkGreen   Color = "DarkGreen"
	DarkAqua    Color = "DarkAqua"
	DarkRed     Color = "DarkRed"
	DarkPurple  Color = "DarkPurple"
	Gold        Color = "Gold"
	Gray        Color = "Gray"
	DarkGray    Color = "DarkGray"
	Blue        Color = "Blue"
	Green       Color = "Green"
	Aqua        Color = "Aqua"
	Red         Color = "Red"
	LightPurple Color = "LighPurple"
	Yellow      Color = "Yellow"
	White       Color = "White"
	Reset       Color = "Reset"
)

// Modifiers toggle text decoration on one component.
type Modifiers struct {
	Bold          bool `json:"bold"`
	Italic        bool `json:"italic"`
	Underlined    bool `json:"underlined"`
	Strikethrough bool `json:"strikethrough"`
	Obfuscated    bool `json:"obfuscated"`
}

// Component is one styled run of text.
type Component struct {
	Text      string     `json:"text"`
	Color     Color      `json:"color,omitempty"`
	Font      string     `json:"font,omitempty"`
	Modifiers *Modifiers `json:"modifiers,omitempty"`
}

// Message is what denial and kick responses carry to the client.
type Message []Component

// Builder accumulates components in order.
type Builder struct {
	parts Message
}

// NewBuilder starts an empty message.
func NewBuilder() *Builder {
	return &Builder{}
}

// Text appends an unstyled component.
func (b *Builder) Text(text string) *Builder {
	b.parts = append(b.parts, Component{Text: text})
	return b
}

// Colored appends a colored component.
func (b *Builder) Colored(text string, color Color) *Builder {
	b.parts = append(b.parts, Component{Text: text, Color: color})
	return b
}

// Styled appends a colored component with modifiers.
func (b *Builder) Styled(text string, color Color, mods Modifiers) *Builder {
	b.parts = append(b.parts, Component{Text: text, Color: color, Modifiers: &mods})
	return b
}

// LineBreak appends a newline component.
func (b *Builder) LineBreak() *Builder {
	return b.Text("\n")
}

// Build returns the accumulated message.
func (b *Builder) Build() Message {
	return b.parts
}
