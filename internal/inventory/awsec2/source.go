// Package awsec2 reads subnets and network interfaces from Amazon EC2.
package awsec2

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/paularlott/logger"

	"github.com/martinsuchenak/ipusage/internal/inventory"
	"github.com/martinsuchenak/ipusage/internal/log"
	"github.com/martinsuchenak/ipusage/internal/pager"
	"github.com/martinsuchenak/ipusage/pkg/model"
)

// DefaultPageSize is the MaxResults sent with each interface listing call
const DefaultPageSize int32 = 1000

// Compile-time interface check
var _ inventory.Source = (*Source)(nil)

// API is the subset of the EC2 client used here
type API interface {
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeNetworkInterfaces(ctx context.Context, params *ec2.DescribeNetworkInterfacesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error)
}

// Options configures the AWS session
type Options struct {
	Profile  string
	Region   string
	PageSize int32
}

// Source is an inventory backed by the EC2 API
type Source struct {
	client   API
	pageSize int32
	log      logger.Logger
}

// New loads the shared AWS configuration for the profile and region
func New(ctx context.Context, opts Options, l logger.Logger) (*Source, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration for profile %q: %w", opts.Profile, err)
	}

	l = log.OrNull(l)
	l.Debug("AWS session ready", "profile", opts.Profile, "region", cfg.Region)
	return NewWithClient(ec2.NewFromConfig(cfg), opts.PageSize, l), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client API, pageSize int32, l logger.Logger) *Source {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Source{client: client, pageSize: pageSize, log: log.OrNull(l)}
}

// Subnet describes one subnet
func (s *Source) Subnet(ctx context.Context, id string) (*model.Subnet, error) {
	out, err := s.client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		SubnetIds: []string{id},
	})
	if err != nil {
		if apiCode(err) == "InvalidSubnetID.NotFound" {
			return nil, fmt.Errorf("%w: %s", inventory.ErrSubnetNotFound, id)
		}
		return nil, fmt.Errorf("describing subnet %s: %w", id, err)
	}
	if len(out.Subnets) == 0 {
		return nil, fmt.Errorf("%w: %s", inventory.ErrSubnetNotFound, id)
	}

	subnet := convertSubnet(out.Subnets[0])
	s.log.Debug("Subnet described", "subnet_id", subnet.ID, "cidr", subnet.CIDR, "name", subnet.Name)
	return subnet, nil
}

// InterfacePages lists the interfaces attached to the subnet
func (s *Source) InterfacePages(subnetID string) pager.PageFunc[model.Interface] {
	return func(ctx context.Context, cursor string) (pager.Page[model.Interface], error) {
		input := &ec2.DescribeNetworkInterfacesInput{
			Filters: []types.Filter{
				{Name: aws.String("subnet-id"), Values: []string{subnetID}},
			},
			MaxResults: aws.Int32(s.pageSize),
		}
		if cursor != "" {
			input.NextToken = aws.String(cursor)
		}

		out, err := s.client.DescribeNetworkInterfaces(ctx, input)
		if err != nil {
			return pager.Page[model.Interface]{}, classifyError(err)
		}

		var items []model.Interface
		for _, ni := range out.NetworkInterfaces {
			items = append(items, convertInterface(ni, subnetID)...)
		}
		return pager.Page[model.Interface]{
			Items: items,
			Next:  aws.ToString(out.NextToken),
		}, nil
	}
}

// classifyError marks errors meaning the operation does not exist
func classifyError(err error) error {
	switch apiCode(err) {
	case "InvalidAction", "UnsupportedOperation", "UnknownOperationException":
		return fmt.Errorf("describing network interfaces: %w: %w", pager.ErrMethodNotFound, err)
	}
	return fmt.Errorf("describing network interfaces: %w", err)
}

func apiCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func convertSubnet(sn types.Subnet) *model.Subnet {
	subnet := &model.Subnet{
		ID:               aws.ToString(sn.SubnetId),
		CIDR:             aws.ToString(sn.CidrBlock),
		VpcID:            aws.ToString(sn.VpcId),
		AvailabilityZone: aws.ToString(sn.AvailabilityZone),
	}
	for _, assoc := range sn.Ipv6CidrBlockAssociationSet {
		if block := aws.ToString(assoc.Ipv6CidrBlock); block != "" {
			subnet.IPv6CIDRs = append(subnet.IPv6CIDRs, block)
		}
	}
	if len(sn.Tags) > 0 {
		subnet.Tags = make(map[string]string, len(sn.Tags))
		for _, tag := range sn.Tags {
			subnet.Tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
		}
		subnet.Name = subnet.Tags["Name"]
	}
	return subnet
}

// convertInterface yields one record per private address of the interface
func convertInterface(ni types.NetworkInterface, subnetID string) []model.Interface {
	base := model.Interface{
		ID:          aws.ToString(ni.NetworkInterfaceId),
		SubnetID:    aws.ToString(ni.SubnetId),
		Status:      string(ni.Status),
		Type:        string(ni.InterfaceType),
		Description: aws.ToString(ni.Description),
	}
	if base.SubnetID == "" {
		base.SubnetID = subnetID
	}

	var out []model.Interface
	seen := make(map[string]bool)
	add := func(ip string, primary bool) {
		if ip == "" || seen[ip] {
			return
		}
		seen[ip] = true
		rec := base
		rec.PrivateIP = ip
		rec.Primary = primary
		out = append(out, rec)
	}

	add(aws.ToString(ni.PrivateIpAddress), true)
	for _, addr := range ni.PrivateIpAddresses {
		add(aws.ToString(addr.PrivateIpAddress), aws.ToBool(addr.Primary))
	}
	for _, addr := range ni.Ipv6Addresses {
		add(aws.ToString(addr.Ipv6Address), false)
	}
	return out
}
