package models

import "time"

// Состояния продукта
const (
	ProductoDisponible = "disponible"
	ProductoBaja       = "baja"
)

// Producto представляет товар, выставленный на обмен
type Producto struct {
	IDProducto       int64     `json:"id_producto"`
	IDUsuario        int64     `json:"id_usuario"`
	IDCategoria      int64     `json:"id_categoria"`
	CategoriaNombre  *string   `json:"categoria_nombre"`
	Titulo           string    `json:"titulo"`
	Descripcion      string    `json:"descripcion,omitempty"`
	ValorEstimado    float64   `json:"valor_estimado"`
	ImagenURL        *string   `json:"imagen_url"`
	Ubicacion        *string   `json:"ubicacion"`
	Estado           string    `json:"estado"` // disponible, baja
	EsTuyo           bool      `json:"es_tuyo"`
	FechaPublicacion time.Time `json:"fecha_publicacion"`
}

// ProductoCard представляет сокращенную карточку товара для списков обменов
type ProductoCard struct {
	IDProducto int64    `json:"id_producto"`
	Titulo     string   `json:"titulo"`
	Imagen     *string  `json:"imagen"`
	Precio     *float64 `json:"precio"`
}

// Card возвращает сокращенную карточку товара
func (p *Producto) Card() *ProductoCard {
	if p == nil {
		return nil
	}
	precio := p.ValorEstimado
	return &ProductoCard{
		IDProducto: p.IDProducto,
		Titulo:     p.Titulo,
		Imagen:     p.ImagenURL,
		Precio:     &precio,
	}
}

// Categoria представляет категорию товаров
type Categoria struct {
	IDCategoria int64  `json:"id_categoria"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion,omitempty"`
}
