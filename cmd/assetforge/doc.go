// Command assetforge downloads curated asset packs, converts their scene
// files to GLB, and maintains the asset registry consumed by viewers.
package main
